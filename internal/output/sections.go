package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/noveum/gatebench/internal/core"
	"github.com/noveum/gatebench/internal/core/stats"
)

const insufficientData = "insufficient data"

func roundsTable(report *core.Report) table.Writer {
	t := table.NewWriter()
	t.SetTitle("Round results")
	t.AppendHeader(table.Row{
		"Round",
		"Duration",
		report.Gateway.Endpoint.DisplayName() + " avg",
		report.Direct.Endpoint.DisplayName() + " avg",
		"Overhead",
		"Faster",
	})
	for _, r := range report.Rounds {
		t.AppendRow(table.Row{
			r.Round,
			seconds(r.Duration),
			meanCell(r.GatewayMean, r.GatewaySamples),
			meanCell(r.DirectMean, r.DirectSamples),
			signedSeconds(r.Overhead),
			winnerLabel(report, r.Winner),
		})
	}
	return t
}

func statsTable(report *core.Report) table.Writer {
	gw := report.Gateway.Latency
	direct := report.Direct.Latency

	t := table.NewWriter()
	t.SetTitle("Latency statistics")
	t.AppendHeader(table.Row{"Metric", report.Gateway.Endpoint.DisplayName(), report.Direct.Endpoint.DisplayName()})
	t.AppendRow(table.Row{"Samples", gw.Count, direct.Count})
	t.AppendRow(table.Row{"Mean", summaryCell(gw, gw.Mean), summaryCell(direct, direct.Mean)})
	t.AppendRow(table.Row{"Median", summaryCell(gw, gw.Median), summaryCell(direct, direct.Median)})
	t.AppendRow(table.Row{"Min", summaryCell(gw, gw.Min), summaryCell(direct, direct.Min)})
	t.AppendRow(table.Row{"Max", summaryCell(gw, gw.Max), summaryCell(direct, direct.Max)})
	t.AppendRow(table.Row{"P95", summaryCell(gw, gw.P95), summaryCell(direct, direct.P95)})
	t.AppendRow(table.Row{"Std dev", stdDevCell(gw), stdDevCell(direct)})
	return t
}

// requestsTable returns nil when the report carries no counters.
func requestsTable(report *core.Report) table.Writer {
	gw := report.Gateway.Requests
	direct := report.Direct.Requests
	if gw == nil && direct == nil {
		return nil
	}

	t := table.NewWriter()
	t.SetTitle("Requests")
	t.AppendHeader(table.Row{"Counter", report.Gateway.Endpoint.DisplayName(), report.Direct.Endpoint.DisplayName()})
	rows := []struct {
		name  string
		value func(c *core.RequestCounters) string
	}{
		{"Requests", func(c *core.RequestCounters) string { return strconv.Itoa(c.Requests) }},
		{"Attempts", func(c *core.RequestCounters) string { return strconv.Itoa(c.Attempts) }},
		{"Succeeded", func(c *core.RequestCounters) string { return strconv.Itoa(c.Successes) }},
		{"Failed", func(c *core.RequestCounters) string { return strconv.Itoa(c.Failures) }},
		{"Rate limited (429)", func(c *core.RequestCounters) string { return strconv.Itoa(c.RateLimited) }},
		{"Other retries", func(c *core.RequestCounters) string { return strconv.Itoa(c.Transient) }},
		{"Success rate", func(c *core.RequestCounters) string { return fmt.Sprintf("%.1f%%", c.SuccessRate()*100) }},
	}
	for _, row := range rows {
		t.AppendRow(table.Row{row.name, counterCell(gw, row.value), counterCell(direct, row.value)})
	}
	return t
}

// analysisLines is the closing summary: tally, average overhead and verdict.
func analysisLines(report *core.Report) []string {
	gwName := report.Gateway.Endpoint.DisplayName()
	directName := report.Direct.Endpoint.DisplayName()

	lines := []string{
		fmt.Sprintf("%s faster in %d round(s)", gwName, report.Tally.GatewayFaster),
		fmt.Sprintf("%s faster in %d round(s)", directName, report.Tally.DirectFaster),
	}
	if report.Tally.Ties > 0 {
		lines = append(lines, fmt.Sprintf("Tied in %d round(s)", report.Tally.Ties))
	}

	if len(report.Rounds) == 0 {
		return append(lines, "Average overhead: "+insufficientData)
	}

	spread := insufficientData
	if report.OverheadStdDevValid {
		spread = seconds(report.OverheadStdDev)
	}
	lines = append(lines,
		fmt.Sprintf("Average overhead: %s (std dev %s)", signedSeconds(report.AverageOverhead), spread))

	switch report.Verdict {
	case core.VerdictGatewayFaster:
		lines = append(lines, fmt.Sprintf("%s is consistently faster than %s", gwName, directName))
	case core.VerdictDirectFaster:
		lines = append(lines, fmt.Sprintf("%s is consistently faster than %s", directName, gwName))
	case core.VerdictNoDifference:
		lines = append(lines, "No significant difference between endpoints")
	default:
		lines = append(lines, "Verdict: "+insufficientData+" (need at least 2 rounds)")
	}
	return lines
}

func winnerLabel(report *core.Report, winner core.Winner) string {
	switch winner {
	case core.WinnerGateway:
		return report.Gateway.Endpoint.DisplayName()
	case core.WinnerDirect:
		return report.Direct.Endpoint.DisplayName()
	default:
		return "tie"
	}
}

func meanCell(value float64, samples int) string {
	if samples == 0 {
		return "-"
	}
	return seconds(value)
}

func summaryCell(s stats.Summary, value float64) string {
	if s.Empty() {
		return insufficientData
	}
	return seconds(value)
}

func stdDevCell(s stats.Summary) string {
	if !s.StdDevValid {
		return insufficientData
	}
	return seconds(s.StdDev)
}

func counterCell(c *core.RequestCounters, value func(c *core.RequestCounters) string) string {
	if c == nil {
		return "-"
	}
	return value(c)
}

func seconds(v float64) string {
	return fmt.Sprintf("%.3fs", v)
}

func signedSeconds(v float64) string {
	return fmt.Sprintf("%+.3fs", v)
}

func joinLines(lines []string, prefix string) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
