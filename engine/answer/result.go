package answer

import (
	"errors"
	"net/url"
	"strings"

	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/knowledge/retriever"
)

// ErrSynthesisFailed marks an answer run that hit a fatal failure.
var ErrSynthesisFailed = errors.New("answer synthesis failed")

// NoContextMessage is the fixed reply when retrieval finds nothing.
const NoContextMessage = "I couldn't find a specific answer to your question. " +
	"Please try rephrasing or ask something else."

const (
	DegradedExtract = "extract"
	DegradedMatch   = "match"
)

// RelatedVideo links the answer to the first retrieved transcript with a known video.
type RelatedVideo struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	VideoID string `json:"video_id,omitempty"`
}

type Result struct {
	Query        string                `json:"query"`
	Final        State                 `json:"final"`
	Text         string                `json:"text"`
	Draft        string                `json:"draft,omitempty"`
	Passages     []retriever.Passage   `json:"passages"`
	Keywords     []string              `json:"keywords"`
	Matches      []catalog.MatchResult `json:"matches"`
	MatchStatus  catalog.MatchStatus   `json:"match_status,omitempty"`
	Degraded     []string              `json:"degraded,omitempty"`
	RelatedVideo *RelatedVideo         `json:"related_video,omitempty"`
	Path         []State               `json:"path"`
}

// VideoID extracts the YouTube id from a watch or short link.
func VideoID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if strings.EqualFold(u.Host, "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	return ""
}

func relatedVideo(passages []retriever.Passage, videos map[string]string) *RelatedVideo {
	for _, p := range passages {
		if link, ok := videos[p.Title]; ok && link != "" {
			return &RelatedVideo{Title: p.Title, URL: link, VideoID: VideoID(link)}
		}
	}
	return nil
}
