package answer

import (
	"strings"

	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/knowledge/retriever"
	"github.com/compozy/woodsage/pkg/tplengine"
)

const (
	promptDraft  = "answer.draft"
	promptRefine = "answer.refine"
)

const draftSystem = "You are Jason Bent, a professional woodworker sharing what you teach in your videos. " +
	"Answer the question using only the provided context from your video transcripts. " +
	"When you rely on a passage, cite the video title and the timestamp it appears at. " +
	"Do not include any links."

const draftTemplate = `Answer the following question based on the context: {{ .context }}

Question: {{ .query }}`

const refineSystem = "You are Jason Bent's woodworking expertise embodied in an AI. " +
	"Compare the question and the draft answer, focusing on woodworking terms. " +
	"Weave in the tools, materials and techniques implied by the related product tags when they help, " +
	"but never name the products and never include links. " +
	"Directly address the question, keep Jason's practical teaching voice, include specific techniques and tips, " +
	"keep every video title and timestamp attribution from the draft, and follow safety best practices."

const refineTemplate = `Question: {{ .query }}

Initial Answer: {{ .draft }}

Related Products:
{{- if .products }}
{{- range .products }}
- {{ .Title }} | {{ .TagString }}
{{- end }}
{{- else }}
none
{{- end }}

Please provide a final answer that incorporates information from the related products, if relevant, without mentioning specific product names or including any links.`

func newPrompts() *tplengine.TemplateEngine {
	return tplengine.NewEngine().
		MustAddTemplate(promptDraft, draftTemplate).
		MustAddTemplate(promptRefine, refineTemplate)
}

// buildContext joins passages as "Title: {title}\n{text}" separated by a space.
func buildContext(passages []retriever.Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, "Title: "+p.Title+"\n"+p.Text)
	}
	return strings.Join(parts, " ")
}

func matchedEntities(results []catalog.MatchResult) []catalog.Entity {
	out := make([]catalog.Entity, 0, len(results))
	for _, r := range results {
		out = append(out, r.Entity)
	}
	return out
}
