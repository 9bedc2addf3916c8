package styles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/compozy/woodsage/engine/answer"
	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/knowledge/ingest"
	"github.com/compozy/woodsage/engine/knowledge/vectordb"
)

var (
	Primary = lipgloss.Color("69")
	Accent  = lipgloss.Color("214")
	Muted   = lipgloss.Color("241")
	Danger  = lipgloss.Color("196")
	Success = lipgloss.Color("42")

	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	QuestionStyle = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	MutedStyle    = lipgloss.NewStyle().Foreground(Muted)
	ErrorStyle    = lipgloss.NewStyle().Foreground(Danger)
	LinkStyle     = lipgloss.NewStyle().Foreground(Primary).Underline(true)
	BoxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)
)

// RenderAnswer formats a synthesis result with its sources and product links.
func RenderAnswer(res *answer.Result) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(res.Text)
	if res.Final == answer.StateNoContext {
		return BoxStyle.Render(b.String())
	}
	if titles := passageTitles(res); len(titles) > 0 {
		b.WriteString("\n\n")
		b.WriteString(MutedStyle.Render("Sources: " + strings.Join(titles, ", ")))
	}
	if len(res.Matches) > 0 {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Products mentioned"))
		for _, m := range res.Matches {
			fmt.Fprintf(&b, "\n• %s  %s", m.Entity.Title, LinkStyle.Render(m.Entity.Link))
		}
	}
	if res.RelatedVideo != nil {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%s %s", TitleStyle.Render("Watch:"), LinkStyle.Render(res.RelatedVideo.URL))
	}
	if len(res.Degraded) > 0 {
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render("degraded: " + strings.Join(res.Degraded, ", ")))
	}
	return BoxStyle.Render(b.String())
}

func passageTitles(res *answer.Result) []string {
	seen := make(map[string]struct{}, len(res.Passages))
	var titles []string
	for _, p := range res.Passages {
		if p.Title == "" {
			continue
		}
		if _, ok := seen[p.Title]; ok {
			continue
		}
		seen[p.Title] = struct{}{}
		titles = append(titles, p.Title)
	}
	return titles
}

// RenderProducts draws catalog entities as a table.
func RenderProducts(entities []catalog.Entity) string {
	if len(entities) == 0 {
		return MutedStyle.Render("No products in the catalog.")
	}
	rows := make([][]string, 0, len(entities))
	for i := range entities {
		e := &entities[i]
		rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.Title, e.TagString(), e.Link})
	}
	return newTable("ID", "Title", "Tags", "Link").Rows(rows...).String()
}

// RenderMatches draws a fuzzy match report.
func RenderMatches(report catalog.MatchReport) string {
	header := MutedStyle.Render(fmt.Sprintf("status: %s, considered: %d", report.Status, report.Considered))
	if len(report.Results) == 0 {
		return header
	}
	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		rows = append(rows, []string{
			strconv.FormatInt(r.Entity.ID, 10),
			r.Entity.Title,
			strconv.FormatFloat(r.Score, 'f', 3, 64),
		})
	}
	return header + "\n" + newTable("ID", "Title", "Score").Rows(rows...).String()
}

func RenderIngest(res *ingest.Result) string {
	if res == nil {
		return ""
	}
	lines := []string{
		TitleStyle.Render("Ingestion complete"),
		fmt.Sprintf("documents: %d", res.Documents),
		fmt.Sprintf("chunks:    %d", res.Chunks),
		fmt.Sprintf("persisted: %d", res.Persisted),
		fmt.Sprintf("skipped:   %d", res.Skipped),
	}
	for _, f := range res.Failures {
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("failed %s: %s", f.ChunkID, f.Message)))
	}
	return BoxStyle.Render(strings.Join(lines, "\n"))
}

func RenderStats(stats vectordb.Stats) string {
	return BoxStyle.Render(strings.Join([]string{
		TitleStyle.Render("Vector index"),
		fmt.Sprintf("provider:  %s", stats.Provider),
		fmt.Sprintf("dimension: %d", stats.Dimension),
		fmt.Sprintf("records:   %d", stats.TotalCount),
	}, "\n"))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Muted)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TitleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}
