package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noveum/gatebench/internal/core"
	"github.com/noveum/gatebench/internal/core/engine"
	"github.com/noveum/gatebench/internal/observability"
	"github.com/noveum/gatebench/internal/output"
	"github.com/noveum/gatebench/internal/server/handlers"
)

type benchmarkSetup struct {
	executor     *engine.Executor
	orchestrator *engine.Orchestrator
	gateway      core.Endpoint
	direct       core.Endpoint
}

func newBenchmarkSetup(t *testing.T, gatewayURL, directURL string, requests, rounds, rpm int) *benchmarkSetup {
	t.Helper()

	payload, err := core.BuildPayload(core.PayloadOptions{Model: core.DefaultModel, Prompt: "ping", MaxTokens: 16})
	require.NoError(t, err)

	gateway := core.Endpoint{Label: core.LabelGateway, Name: "Gateway", URL: gatewayURL, Headers: map[string]string{"x-provider": "groq"}}
	direct := core.Endpoint{Label: core.LabelDirect, Name: "Direct", URL: directURL}

	limiters := map[string]*engine.RateLimiter{}
	if rpm > 0 {
		limiters[core.LabelGateway] = engine.NewRateLimiter("gateway", rpm, time.Minute)
		limiters[core.LabelDirect] = engine.NewRateLimiter("direct", rpm, time.Minute)
	}

	executor := engine.NewExecutor(&http.Client{Timeout: 10 * time.Second}, limiters, zap.NewNop())
	executor.FailureDelay = 5 * time.Millisecond

	runner := &engine.Runner{
		Executor:   executor,
		Gateway:    gateway,
		Direct:     direct,
		APIKey:     "integration-key",
		Payload:    payload,
		Requests:   requests,
		Rounds:     rounds,
		MaxRetries: 3,
		PairDelay:  0,
	}

	return &benchmarkSetup{
		executor:     executor,
		orchestrator: &engine.Orchestrator{Runner: runner, RoundCooldown: 0},
		gateway:      gateway,
		direct:       direct,
	}
}

func (b *benchmarkSetup) run(t *testing.T, rounds int) *core.Report {
	t.Helper()
	results, err := b.orchestrator.Run(context.Background(), rounds)
	require.NoError(t, err)
	report := core.Summarize(results, b.gateway, b.direct)
	report.AttachCounters(b.executor.Stats())
	return report
}

func TestBenchmarkEndToEnd_Integration(t *testing.T) {
	gatewaySrv, gatewayURL := newUpstream(t, handlers.Options{
		Chunks:        5,
		ChunkDelay:    2 * time.Millisecond,
		RequireHeader: "x-provider",
	})
	directSrv, directURL := newUpstream(t, handlers.Options{
		Chunks:         5,
		RateLimitEvery: 3,
		RetryAfter:     20 * time.Millisecond,
	})

	const requests, rounds = 4, 3
	setup := newBenchmarkSetup(t, gatewayURL, directURL, requests, rounds, 0)
	report := setup.run(t, rounds)

	require.Len(t, report.Rounds, rounds)
	assert.Equal(t, requests*rounds, report.Gateway.Latency.Count)
	assert.Equal(t, requests*rounds, report.Direct.Latency.Count)
	assert.Equal(t, rounds, report.Tally.GatewayFaster+report.Tally.DirectFaster+report.Tally.Ties)
	assert.True(t, report.OverheadStdDevValid)
	assert.NotEqual(t, core.VerdictInsufficientData, report.Verdict)

	// the chunk delay makes every gateway stream slower than the direct one
	assert.Greater(t, report.Gateway.Latency.Mean, report.Direct.Latency.Mean)
	assert.Greater(t, report.AverageOverhead, 0.0)

	require.NotNil(t, report.Direct.Requests)
	assert.Greater(t, report.Direct.Requests.RateLimited, 0)
	assert.Equal(t, requests*rounds, report.Direct.Requests.Successes)
	assert.EqualValues(t, report.Direct.Requests.Attempts, directSrv.Served())
	assert.EqualValues(t, requests*rounds, gatewaySrv.Served())

	for _, format := range []output.Format{output.FormatTable, output.FormatMarkdown, output.FormatJSON, output.FormatYAML} {
		rendered, err := output.NewFormatter(format).FormatReport(report)
		require.NoError(t, err, format)
		require.NotEmpty(t, rendered, format)
	}

	rendered, err := output.NewFormatter(output.FormatJSON).FormatReport(report)
	require.NoError(t, err)
	var decoded core.Report
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	assert.Equal(t, report.Verdict, decoded.Verdict)
	assert.Len(t, decoded.Rounds, rounds)
}

func TestBenchmarkMetrics_Integration(t *testing.T) {
	observability.InitServerLogger("test", "error")
	initMetricsOrSkip(t)

	_, gatewayURL := newUpstream(t, handlers.Options{Chunks: 2})
	_, directURL := newUpstream(t, handlers.Options{Chunks: 2, FailEvery: 4})

	setup := newBenchmarkSetup(t, gatewayURL, directURL, 3, 2, 100)
	setup.run(t, 2)

	port := observability.GetMetricsPort()
	if port == 0 {
		t.Skip("metrics exporter did not report its port")
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	content := string(body)
	assert.Contains(t, content, "requests_total")
	assert.Contains(t, content, "attempts_total")
	assert.Contains(t, content, "http_requests_total", "mock upstream middleware should emit request metrics")

	metricLines := 0
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if !strings.HasPrefix(line, "#") && strings.TrimSpace(line) != "" {
			metricLines++
		}
	}
	assert.Greater(t, metricLines, 0, "Should have actual metric values")
}
