package embedder

import (
	"crypto/sha256"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// vectorCache maps text digests to embeddings. Values are copied in and out
// so callers can mutate what they get back.
type vectorCache struct {
	entries *lru.Cache[[sha256.Size]byte, []float32]
}

func newVectorCache(size int) (*vectorCache, error) {
	entries, err := lru.New[[sha256.Size]byte, []float32](size)
	if err != nil {
		return nil, err
	}
	return &vectorCache{entries: entries}, nil
}

func (c *vectorCache) get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.entries.Get(sha256.Sum256([]byte(text)))
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

func (c *vectorCache) put(text string, v []float32) {
	if c == nil || len(v) == 0 {
		return
	}
	c.entries.Add(sha256.Sum256([]byte(text)), slices.Clone(v))
}
