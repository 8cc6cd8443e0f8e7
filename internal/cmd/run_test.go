package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noveum/gatebench/internal/config"
	"github.com/noveum/gatebench/internal/core"
	"github.com/noveum/gatebench/internal/output"
	"github.com/noveum/gatebench/internal/server"
	"github.com/noveum/gatebench/internal/server/handlers"
)

func newUpstream(t *testing.T, opts handlers.Options) (*server.Server, string) {
	t.Helper()
	srv := server.New("127.0.0.1", 0, opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL + "/v1/chat/completions"
}

func testConfig(gatewayURL, directURL string) *config.Config {
	return &config.Config{
		APIKey:     "test-key",
		Requests:   3,
		Rounds:     2,
		MaxRetries: 3,
		RateLimit:  config.RateLimitConfig{RPM: 0, Window: time.Minute},
		Request: config.RequestConfig{
			Timeout:        5 * time.Second,
			FailureDelay:   time.Millisecond,
			RateLimitDelay: time.Millisecond,
		},
		Payload: config.PayloadConfig{
			Model:     core.DefaultModel,
			Prompt:    "ping",
			MaxTokens: 8,
		},
		Endpoints: config.EndpointsConfig{
			Gateway: config.EndpointConfig{Name: "Gateway", URL: gatewayURL, Headers: map[string]string{"x-provider": "groq"}},
			Direct:  config.EndpointConfig{Name: "Direct", URL: directURL},
		},
		Output: config.OutputConfig{Format: "json"},
	}
}

func TestBenchmarkAgainstMockUpstreams(t *testing.T) {
	gatewaySrv, gatewayURL := newUpstream(t, handlers.Options{Chunks: 3, RequireHeader: "x-provider"})
	directSrv, directURL := newUpstream(t, handlers.Options{Chunks: 3})

	cfg := testConfig(gatewayURL, directURL)
	bench, err := newBenchmark(cfg, zap.NewNop())
	require.NoError(t, err)

	rounds, err := bench.orchestrator.Run(context.Background(), cfg.Rounds)
	require.NoError(t, err)
	require.Len(t, rounds, 2)

	report := bench.report(rounds)
	require.Equal(t, 6, report.Gateway.Latency.Count)
	require.Equal(t, 6, report.Direct.Latency.Count)
	require.Equal(t, 2, report.Tally.GatewayFaster+report.Tally.DirectFaster+report.Tally.Ties)
	require.NotNil(t, report.Gateway.Requests)
	require.Equal(t, 6, report.Gateway.Requests.Successes)

	require.EqualValues(t, 6, gatewaySrv.Served())
	require.EqualValues(t, 6, directSrv.Served())
}

func TestBenchmarkRetriesRateLimitedUpstream(t *testing.T) {
	_, gatewayURL := newUpstream(t, handlers.Options{Chunks: 2})
	directSrv, directURL := newUpstream(t, handlers.Options{
		Chunks:         2,
		RateLimitEvery: 2,
		RetryAfter:     10 * time.Millisecond,
	})

	cfg := testConfig(gatewayURL, directURL)
	cfg.Rounds = 1
	cfg.Requests = 2
	bench, err := newBenchmark(cfg, zap.NewNop())
	require.NoError(t, err)

	rounds, err := bench.orchestrator.Run(context.Background(), cfg.Rounds)
	require.NoError(t, err)

	report := bench.report(rounds)
	require.Equal(t, 2, report.Direct.Latency.Count)
	require.Equal(t, 1, report.Direct.Requests.RateLimited)
	require.Equal(t, 3, report.Direct.Requests.Attempts)
	require.EqualValues(t, 3, directSrv.Served())
}

func TestBenchmarkExcludesFailedRequests(t *testing.T) {
	_, gatewayURL := newUpstream(t, handlers.Options{Chunks: 2, FailEvery: 1})
	_, directURL := newUpstream(t, handlers.Options{Chunks: 2})

	cfg := testConfig(gatewayURL, directURL)
	cfg.Rounds = 1
	cfg.Requests = 2
	cfg.MaxRetries = 2
	bench, err := newBenchmark(cfg, zap.NewNop())
	require.NoError(t, err)

	rounds, err := bench.orchestrator.Run(context.Background(), cfg.Rounds)
	require.NoError(t, err)

	report := bench.report(rounds)
	require.True(t, report.Gateway.Latency.Empty())
	require.Equal(t, 2, report.Direct.Latency.Count)
	require.Equal(t, 2, report.Gateway.Requests.Failures)
	require.Equal(t, 4, report.Gateway.Requests.Attempts)
	require.Equal(t, core.VerdictInsufficientData, report.Verdict)
}

func TestNewBenchmarkRejectsEmptyModel(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/v1/chat/completions", "http://127.0.0.1:2/v1/chat/completions")
	cfg.Payload.Model = ""
	_, err := newBenchmark(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewBenchmarkBuildsLimitersOnlyWhenEnabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/a", "http://127.0.0.1:2/b")
	bench, err := newBenchmark(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, bench.executor.Limiters)

	cfg.RateLimit.RPM = 10
	bench, err = newBenchmark(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, bench.executor.Limiters, 2)
	require.Contains(t, bench.executor.Limiters, core.LabelGateway)
	require.Contains(t, bench.executor.Limiters, core.LabelDirect)
}

func TestWriteReportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	rendered, err := output.NewFormatter(output.FormatJSON).FormatReport(&core.Report{})
	require.NoError(t, err)

	written, err := writeReport(path, rendered)
	require.NoError(t, err)
	require.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(data, []byte("\n")))
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2025-01-01")
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	extended = false
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	require.Equal(t, "gatebench 1.2.3\n", out.String())
}
