package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/noveum/gatebench/internal/core"
)

var (
	gateway = core.Endpoint{Label: core.LabelGateway, Name: "Noveum Gateway", URL: "https://gw.example", Headers: map[string]string{"x-provider": "groq"}}
	direct  = core.Endpoint{Label: core.LabelDirect, Name: "Direct Groq", URL: "https://direct.example"}
)

func sampleReport() *core.Report {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rounds := []*core.TestRound{
		{
			Number:           1,
			GatewayLatencies: []time.Duration{time.Second, 1200 * time.Millisecond},
			DirectLatencies:  []time.Duration{800 * time.Millisecond, 900 * time.Millisecond},
			StartedAt:        start,
			EndedAt:          start.Add(3 * time.Second),
		},
		{
			Number:           2,
			GatewayLatencies: []time.Duration{1100 * time.Millisecond},
			DirectLatencies:  []time.Duration{900 * time.Millisecond},
			StartedAt:        start.Add(10 * time.Second),
			EndedAt:          start.Add(12 * time.Second),
		},
	}
	report := core.Summarize(rounds, gateway, direct)
	report.AttachCounters(map[string]core.RequestCounters{
		core.LabelGateway: {Requests: 3, Attempts: 4, Successes: 3, RateLimited: 1},
		core.LabelDirect:  {Requests: 4, Attempts: 4, Successes: 3, Failures: 1},
	})
	return report
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":         FormatTable,
		"table":    FormatTable,
		"JSON":     FormatJSON,
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		"yaml":     FormatYAML,
		" yml ":    FormatYAML,
	}
	for input, want := range cases {
		got, err := ParseFormat(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).FormatReport(sampleReport())
	require.NoError(t, err)

	lower := strings.ToLower(rendered)
	require.Contains(t, lower, "round results")
	require.Contains(t, lower, "latency statistics")
	require.Contains(t, lower, "rate limited (429)")
	require.Contains(t, rendered, "╭")
	require.Contains(t, rendered, "+0.250s")
	require.Contains(t, rendered, "75.0%")
	require.Contains(t, rendered, "Final analysis")
	require.Contains(t, rendered, "Direct Groq is consistently faster than Noveum Gateway")
	require.Contains(t, rendered, "Direct Groq faster in 2 round(s)")
}

func TestTableFormatterGuardsSmallSamples(t *testing.T) {
	rounds := []*core.TestRound{{
		Number:           1,
		GatewayLatencies: []time.Duration{time.Second},
	}}
	report := core.Summarize(rounds, gateway, direct)

	rendered, err := NewFormatter(FormatTable).FormatReport(report)
	require.NoError(t, err)
	require.Contains(t, rendered, insufficientData)
	require.Contains(t, rendered, "Verdict: insufficient data")
	require.NotContains(t, rendered, "consistently faster")
}

func TestTableFormatterEmptyReport(t *testing.T) {
	report := core.Summarize(nil, gateway, direct)
	rendered, err := NewFormatter(FormatTable).FormatReport(report)
	require.NoError(t, err)
	require.Contains(t, rendered, "Average overhead: insufficient data")

	rendered, err = NewFormatter(FormatTable).FormatReport(nil)
	require.NoError(t, err)
	require.Empty(t, rendered)
}

func TestMarkdownFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatReport(sampleReport())
	require.NoError(t, err)
	require.Contains(t, rendered, "## Latency comparison")
	require.Contains(t, rendered, "### Round results")
	require.Contains(t, rendered, "---")
	require.Contains(t, rendered, "- Direct Groq is consistently faster than Noveum Gateway")
}

func TestJSONFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).FormatReport(sampleReport())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, "direct_faster", decoded["verdict"])
	require.NotContains(t, rendered, "x-provider")

	rounds, ok := decoded["rounds"].([]any)
	require.True(t, ok)
	require.Len(t, rounds, 2)
	first := rounds[0].(map[string]any)
	require.InDelta(t, 0.25, first["overhead"], 1e-9)
	require.Equal(t, "direct", first["winner"])
}

func TestYAMLFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatYAML).FormatReport(sampleReport())
	require.NoError(t, err)

	var decoded struct {
		Verdict string `yaml:"verdict"`
		Tally   struct {
			DirectFaster int `yaml:"direct_faster"`
		} `yaml:"tally"`
		Gateway struct {
			Requests struct {
				RateLimited int `yaml:"rate_limited"`
			} `yaml:"requests"`
		} `yaml:"gateway"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, "direct_faster", decoded.Verdict)
	require.Equal(t, 2, decoded.Tally.DirectFaster)
	require.Equal(t, 1, decoded.Gateway.Requests.RateLimited)
}
