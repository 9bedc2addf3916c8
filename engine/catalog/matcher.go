package catalog

import (
	"sort"
	"strings"
)

const (
	DefaultThreshold = 0.7
	DefaultTopK      = 5
)

// MatchStatus distinguishes an empty catalog from a catalog with no hits.
type MatchStatus string

const (
	MatchStatusMatched      MatchStatus = "matched"
	MatchStatusNoMatches    MatchStatus = "no_matches"
	MatchStatusEmptyCatalog MatchStatus = "empty_catalog"
	MatchStatusUnavailable  MatchStatus = "unavailable"
)

type MatchResult struct {
	Entity Entity  `json:"entity"`
	Score  float64 `json:"score"`
}

type MatchReport struct {
	Results    []MatchResult `json:"results"`
	Considered int           `json:"considered"`
	Status     MatchStatus   `json:"status"`
}

// Matcher scores entities by fuzzy keyword to tag similarity.
type Matcher struct {
	Threshold float64
	TopK      int
}

// NewMatcher falls back to the defaults for a threshold outside (0, 1] or a
// non-positive topK.
func NewMatcher(threshold float64, topK int) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Matcher{Threshold: threshold, TopK: topK}
}

// Score sums, per keyword, the best tag ratio when it exceeds the threshold.
func (m *Matcher) Score(keywords []string, tags []string) float64 {
	folded := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			folded = append(folded, t)
		}
	}
	if len(folded) == 0 {
		return 0
	}
	score := 0.0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		best := 0.0
		for _, tag := range folded {
			if r := Similarity(kw, tag); r > best {
				best = r
			}
		}
		if best > m.Threshold {
			score += best
		}
	}
	return score
}

// Match ranks entities with a positive score. Ties keep catalog order.
func (m *Matcher) Match(keywords []string, entities []Entity) MatchReport {
	report := MatchReport{Results: []MatchResult{}}
	for i := range entities {
		if len(entities[i].Tags) == 0 {
			continue
		}
		report.Considered++
		if s := m.Score(keywords, entities[i].Tags); s > 0 {
			report.Results = append(report.Results, MatchResult{Entity: entities[i], Score: s})
		}
	}
	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Score > report.Results[j].Score
	})
	if len(report.Results) > m.TopK {
		report.Results = report.Results[:m.TopK]
	}
	switch {
	case report.Considered == 0:
		report.Status = MatchStatusEmptyCatalog
	case len(report.Results) == 0:
		report.Status = MatchStatusNoMatches
	default:
		report.Status = MatchStatusMatched
	}
	return report
}
