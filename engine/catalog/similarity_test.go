package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"Should score identical strings as one", "router bits", "router bits", 1},
		{"Should score disjoint strings as zero", "abc", "xyz", 0},
		{"Should score two empty strings as one", "", "", 1},
		{"Should count a shifted overlap", "abcd", "bcde", 0.75},
		{"Should score a plural near one", "router bit", "router bits", 20.0 / 21.0},
		{"Should collect blocks on both sides of the longest match", "xaby_cd", "ab_cdz", 2.0 * 5 / 13},
		{"Should compare runes, not bytes", "café", "cafe", 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Similarity(tc.a, tc.b), 1e-9)
		})
	}
}
