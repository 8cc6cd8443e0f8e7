package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noveum/gatebench/internal/config"
	"github.com/noveum/gatebench/internal/core"
	"github.com/noveum/gatebench/internal/core/engine"
	errwrap "github.com/noveum/gatebench/internal/errors"
	"github.com/noveum/gatebench/internal/observability"
	"github.com/noveum/gatebench/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway versus direct latency benchmark",
	Long: `Run sends --requests pairs of identical streaming chat-completion requests per
round, one to the gateway and one to the direct endpoint at the same time, for
--rounds rounds. Each endpoint is rate limited independently and every request
is retried on 429 and transient failures.

Interrupting the run (Ctrl+C) stops after the current request and reports the
rounds completed so far.`,
	Example: `  gatebench run --api-key $GROQ_API_KEY --requests 5 --rounds 2
  GATEBENCH_API_KEY=... gatebench run --output-format markdown --out report.md`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.String("api-key", "", "API key sent as a bearer token to both endpoints")
	flags.Int("requests", 10, "request pairs per round")
	flags.Int("rounds", 3, "number of rounds")
	flags.Int("max-retries", engine.DefaultMaxRetries, "attempts per request, including the first")
	flags.Int("rpm", 10, "requests per minute allowed per endpoint (0 disables limiting)")
	flags.Duration("pair-delay", engine.DefaultPairDelay, "pause between request pairs")
	flags.Duration("round-cooldown", engine.DefaultRoundCooldown, "pause between rounds")
	flags.Duration("timeout", 0, "per-attempt timeout including the streamed body (default from config, 60s)")
	flags.String("gateway-url", "", "gateway chat completions URL")
	flags.String("direct-url", "", "direct provider chat completions URL")
	flags.String("model", "", "model name")
	flags.String("prompt", "", "user prompt")
	flags.Int("max-tokens", 0, "max tokens to generate")
	flags.StringP("output-format", "f", "table", "report format (table, markdown, json, yaml)")
	flags.StringP("out", "o", "", "write the report to a file instead of stdout")
	flags.Bool("metrics", false, "expose Prometheus metrics while the benchmark runs")
	flags.Int("metrics-port", 9090, "Prometheus exporter port")

	bindings := map[string]string{
		"api_key":               "api-key",
		"requests":              "requests",
		"rounds":                "rounds",
		"max_retries":           "max-retries",
		"rate_limit.rpm":        "rpm",
		"pair_delay":            "pair-delay",
		"round_cooldown":        "round-cooldown",
		"endpoints.gateway.url": "gateway-url",
		"endpoints.direct.url":  "direct-url",
		"payload.model":         "model",
		"payload.prompt":        "prompt",
		"output.format":         "output-format",
		"output.path":           "out",
		"metrics.enabled":       "metrics",
		"metrics.port":          "metrics-port",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// Flags whose zero default means "use the configured value" are applied only
// when set explicitly.
func applyExplicitFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Request.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("max-tokens") {
		cfg.Payload.MaxTokens, _ = flags.GetInt("max-tokens")
	}
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration",
			errwrap.WrapConfigInvalid(ctx, err, "failed to load configuration"))
	}
	applyExplicitFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration",
			errwrap.WrapConfigInvalid(ctx, err, err.Error()))
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid output format",
			errwrap.WrapConfigInvalid(ctx, err, err.Error()))
	}

	logPath := observability.InitCLILogger(binaryName, cfg.Logging.Level, cfg.Logging.Dir, verbose)
	logger := observability.CLILogger
	defer func() { _ = logger.Sync() }()
	if logPath != "" {
		logger.Info("Logging to file", zap.String("path", logPath))
	}

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(binaryName, cfg.Metrics.Port); err != nil {
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
		defer func() { _ = observability.ShutdownMetrics() }()
		logger.Info("Metrics exporter started", zap.Int("port", observability.GetMetricsPort()))
	}

	bench, err := newBenchmark(cfg, logger)
	if err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Invalid benchmark setup",
			errwrap.WrapConfigInvalid(ctx, err, err.Error()))
	}

	logger.Info("Starting benchmark",
		zap.String("gateway", bench.gateway.URL),
		zap.String("direct", bench.direct.URL),
		zap.Int("rounds", cfg.Rounds),
		zap.Int("requests_per_round", cfg.Requests),
		zap.Int("rpm", cfg.RateLimit.RPM))

	rounds, runErr := bench.orchestrator.Run(ctx, cfg.Rounds)
	if runErr != nil {
		logger.Warn("Benchmark stopped early, reporting completed rounds",
			zap.Int("completed_rounds", len(rounds)),
			zap.Error(runErr))
	}

	report := bench.report(rounds)
	rendered, err := output.NewFormatter(format).FormatReport(report)
	if err != nil {
		return errwrap.WrapInternal(ctx, err, "failed to render report")
	}
	path, err := writeReport(cfg.Output.Path, rendered)
	if err != nil {
		return errwrap.WrapInternal(ctx, err, "failed to write report")
	}
	if path != "-" {
		logger.Info("Report written", zap.String("path", path))
	}

	if runErr == nil && report.Gateway.Latency.Empty() && report.Direct.Latency.Empty() {
		ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "No request succeeded",
			errwrap.NewExternalServiceError("every request failed after retries"))
	}
	return nil
}

// benchmark wires the engine for one run.
type benchmark struct {
	orchestrator *engine.Orchestrator
	executor     *engine.Executor
	gateway      core.Endpoint
	direct       core.Endpoint
}

func newBenchmark(cfg *config.Config, logger *zap.Logger) (*benchmark, error) {
	payload, err := core.BuildPayload(cfg.PayloadOptions())
	if err != nil {
		return nil, err
	}

	gateway := cfg.GatewayEndpoint()
	direct := cfg.DirectEndpoint()

	limiters := make(map[string]*engine.RateLimiter, 2)
	if cfg.RateLimit.RPM > 0 {
		for _, endpoint := range []core.Endpoint{gateway, direct} {
			limiter := engine.NewRateLimiter(endpoint.DisplayName(), cfg.RateLimit.RPM, cfg.RateLimit.Window)
			limiter.Logger = logger
			limiters[endpoint.Label] = limiter
		}
	}

	executor := engine.NewExecutor(&http.Client{Timeout: cfg.Request.Timeout}, limiters, logger)
	executor.MaxRetries = cfg.MaxRetries
	if cfg.Request.FailureDelay > 0 {
		executor.FailureDelay = cfg.Request.FailureDelay
	}
	if cfg.Request.RateLimitDelay > 0 {
		executor.RateLimitDelay = cfg.Request.RateLimitDelay
	}

	runner := &engine.Runner{
		Executor:   executor,
		Gateway:    gateway,
		Direct:     direct,
		APIKey:     cfg.APIKey,
		Payload:    payload,
		Requests:   cfg.Requests,
		Rounds:     cfg.Rounds,
		MaxRetries: cfg.MaxRetries,
		PairDelay:  cfg.PairDelay,
		Logger:     logger,
	}

	return &benchmark{
		orchestrator: &engine.Orchestrator{
			Runner:        runner,
			RoundCooldown: cfg.RoundCooldown,
			Logger:        logger,
		},
		executor: executor,
		gateway:  gateway,
		direct:   direct,
	}, nil
}

func (b *benchmark) report(rounds []*core.TestRound) *core.Report {
	report := core.Summarize(rounds, b.gateway, b.direct)
	report.AttachCounters(b.executor.Stats())
	return report
}
