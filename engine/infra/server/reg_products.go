package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/infra/server/router"
)

// productRequest has no id field; ids come from the path or the repository.
type productRequest struct {
	Title string   `json:"title" binding:"required"`
	Tags  []string `json:"tags"`
	Link  string   `json:"link"`
}

func (r *productRequest) entity(id int64) *catalog.Entity {
	return &catalog.Entity{ID: id, Title: r.Title, Tags: r.Tags, Link: r.Link}
}

type matchRequest struct {
	Keywords []string `json:"keywords" binding:"required,min=1"`
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "invalid product id", err))
		return 0, false
	}
	return id, true
}

// listProductsHandler returns products that carry both tags and a link;
// ?all=true includes incomplete entries.
func listProductsHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	list := state.Runtime.Catalog.ListComplete
	if all, _ := strconv.ParseBool(c.Query("all")); all {
		list = state.Runtime.Catalog.List
	}
	products, err := list(c.Request.Context())
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to list products", err))
		return
	}
	router.RespondOK(c, "products retrieved", gin.H{"products": products, "total": len(products)})
}

func getProductHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	id, ok := productID(c)
	if !ok {
		return
	}
	product, err := state.Runtime.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to get product", err))
		return
	}
	router.RespondOK(c, "product retrieved", product)
}

func createProductHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "invalid product", err))
		return
	}
	product, err := state.Runtime.Catalog.Add(c.Request.Context(), req.entity(0))
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to add product", err))
		return
	}
	router.RespondCreated(c, "product added", product)
}

func updateProductHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	id, ok := productID(c)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "invalid product", err))
		return
	}
	product, err := state.Runtime.Catalog.Update(c.Request.Context(), req.entity(id))
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to update product", err))
		return
	}
	router.RespondOK(c, "product updated", product)
}

func deleteProductHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	id, ok := productID(c)
	if !ok {
		return
	}
	if err := state.Runtime.Catalog.Delete(c.Request.Context(), id); err != nil {
		router.RespondWithError(c, router.FromError("failed to delete product", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func matchProductsHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "keywords are required", err))
		return
	}
	report, err := state.Runtime.Catalog.Match(c.Request.Context(), req.Keywords)
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to match products", err))
		return
	}
	router.RespondOK(c, "products matched", report)
}
