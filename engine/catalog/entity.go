package catalog

import (
	"fmt"
	"strings"
)

// Entity is a tagged catalog product.
type Entity struct {
	ID    int64    `json:"id"    yaml:"id"`
	Title string   `json:"title" yaml:"title"`
	Tags  []string `json:"tags"  yaml:"tags"`
	Link  string   `json:"link"  yaml:"link"`
}

// ParseTags splits a comma separated tag list, trimming entries and dropping empties.
// Case is preserved.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// TagString joins tags the way they are stored.
func (e *Entity) TagString() string {
	return strings.Join(e.Tags, ", ")
}

// EmbeddingText is the text indexed for the entity.
func (e *Entity) EmbeddingText() string {
	return fmt.Sprintf("%s: %s", e.Title, e.TagString())
}

// Complete reports whether the entity has both tags and a link.
func (e *Entity) Complete() bool {
	return len(e.Tags) > 0 && strings.TrimSpace(e.Link) != ""
}

// Validate checks the fields a caller must provide.
func (e *Entity) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: entity is required", ErrInvalidEntity)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEntity)
	}
	if e.ID < 0 {
		return fmt.Errorf("%w: id must not be negative", ErrInvalidEntity)
	}
	return nil
}

// Normalize trims the entity fields in place.
func (e *Entity) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Link = strings.TrimSpace(e.Link)
	tags := make([]string, 0, len(e.Tags))
	for _, t := range e.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	e.Tags = tags
}

// VectorID is the index identity of a catalog entity.
func VectorID(id int64) string {
	return fmt.Sprintf("product_%d", id)
}
