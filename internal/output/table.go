package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/noveum/gatebench/internal/core"
)

// TableFormatter renders a report as ASCII tables.
type TableFormatter struct{}

// FormatReport renders the round, latency and request tables followed by
// the final analysis.
func (f *TableFormatter) FormatReport(report *core.Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, t := range []table.Writer{roundsTable(report), statsTable(report), requestsTable(report)} {
		if t == nil {
			continue
		}
		t.SetStyle(table.StyleRounded)
		sb.WriteString(t.Render())
		sb.WriteString("\n\n")
	}

	sb.WriteString("Final analysis\n")
	sb.WriteString(joinLines(analysisLines(report), "  "))
	return sb.String(), nil
}
