package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/noveum/gatebench/internal/core"
)

// MarkdownFormatter renders a report as markdown tables.
type MarkdownFormatter struct{}

// FormatReport renders the report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *core.Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Latency comparison\n\n")

	sections := []struct {
		title string
		t     table.Writer
	}{
		{"Round results", roundsTable(report)},
		{"Latency statistics", statsTable(report)},
		{"Requests", requestsTable(report)},
	}
	for _, section := range sections {
		if section.t == nil {
			continue
		}
		// markdown has no table captions
		section.t.SetTitle("")
		sb.WriteString("### " + section.title + "\n\n")
		sb.WriteString(section.t.RenderMarkdown())
		sb.WriteString("\n\n")
	}

	sb.WriteString("### Final analysis\n\n")
	sb.WriteString(joinLines(analysisLines(report), "- "))
	return sb.String(), nil
}
