package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noveum/gatebench/internal/config"
	errwrap "github.com/noveum/gatebench/internal/errors"
	"github.com/noveum/gatebench/internal/observability"
	"github.com/noveum/gatebench/internal/server"
	"github.com/noveum/gatebench/internal/server/handlers"
)

const mockShutdownTimeout = 10 * time.Second

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a mock OpenAI-compatible streaming upstream",
	Long: `Start a local chat-completions server that streams canned SSE chunks, so the
benchmark can be exercised without provider credentials. Point both
endpoints at it, optionally with injected 429s and 500s:

  gatebench mock --port 8089 --rate-limit-every 4
  gatebench run --api-key test \
    --gateway-url http://127.0.0.1:8089/v1/chat/completions \
    --direct-url http://127.0.0.1:8089/openai/v1/chat/completions

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "failed to load configuration")
		}
		mock := cfg.Mock

		observability.InitServerLogger(binaryName+"-mock", cfg.Logging.Level)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(binaryName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		logger.Info("Initializing mock upstream",
			zap.String("version", versionInfo.Version),
			zap.String("host", mock.Host),
			zap.Int("port", mock.Port),
			zap.Int("chunks", mock.Chunks),
			zap.Duration("chunk_delay", mock.ChunkDelay),
			zap.Int("rate_limit_every", mock.RateLimitEvery),
			zap.Int("fail_every", mock.FailEvery))

		srv := server.New(mock.Host, mock.Port, handlers.Options{
			Chunks:         mock.Chunks,
			ChunkDelay:     mock.ChunkDelay,
			RateLimitEvery: mock.RateLimitEvery,
			RetryAfter:     mock.RetryAfter,
			FailEvery:      mock.FailEvery,
			RequireHeader:  mock.RequireHeader,
			Model:          cfg.Payload.Model,
		})

		// LIFO: the server stops first, then metrics, then the logger is flushed.
		signals.OnShutdown(func(ctx context.Context) error {
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if !cfg.Metrics.Enabled {
				return nil
			}
			return observability.ShutdownMetrics()
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down mock upstream...")
			shutdownCtx, cancel := context.WithTimeout(ctx, mockShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			logger.Info("Mock upstream stopped gracefully", zap.Uint64("served", srv.Served()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "mock upstream error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mockCmd)

	flags := mockCmd.Flags()
	flags.String("host", "127.0.0.1", "listen host")
	flags.IntP("port", "p", 8089, "listen port")
	flags.Int("chunks", handlers.DefaultChunks, "SSE chunks per streamed response")
	flags.Duration("chunk-delay", 20*time.Millisecond, "pause before each chunk")
	flags.Int("rate-limit-every", 0, "answer every Nth request with 429 (0 disables)")
	flags.Duration("retry-after", handlers.DefaultRetryAfter, "delay advertised in 429 messages")
	flags.Int("fail-every", 0, "answer every Nth request with 500 (0 disables)")
	flags.String("require-header", "", "reject requests missing this header")

	bindings := map[string]string{
		"mock.host":             "host",
		"mock.port":             "port",
		"mock.chunks":           "chunks",
		"mock.chunk_delay":      "chunk-delay",
		"mock.rate_limit_every": "rate-limit-every",
		"mock.retry_after":      "retry-after",
		"mock.fail_every":       "fail-every",
		"mock.require_header":   "require-header",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}
