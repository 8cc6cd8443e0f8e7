package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noveum/gatebench/internal/core"
	"github.com/noveum/gatebench/internal/metrics"
)

// DefaultPairDelay separates consecutive request pairs within a round.
const DefaultPairDelay = time.Second

// Runner drives a single round of paired requests.
type Runner struct {
	Executor   RequestExecutor
	Gateway    core.Endpoint
	Direct     core.Endpoint
	APIKey     string
	Payload    []byte
	Requests   int
	Rounds     int
	MaxRetries int
	PairDelay  time.Duration
	Sleep      SleepFunc
	Clock      func() time.Time
	Logger     *zap.Logger
}

// RunRound issues Requests pairs one after another. Both requests of a pair
// run concurrently; a failure on one side never cancels the other. Failed
// requests (zero latency) are left out of the round.
func (r *Runner) RunRound(ctx context.Context, number int) (*core.TestRound, error) {
	logger := r.logger().With(zap.Int("round", number))
	logger.Info("Starting test round", zap.Int("of", r.Rounds), zap.Int("pairs", r.Requests))

	round := &core.TestRound{Number: number, StartedAt: r.now()}

	for i := 0; i < r.Requests; i++ {
		if err := ctx.Err(); err != nil {
			round.EndedAt = r.now()
			return round, err
		}

		logger.Info("Request pair", zap.Int("pair", i+1), zap.Int("of", r.Requests))

		var (
			g       errgroup.Group
			gateway time.Duration
			direct  time.Duration
		)
		g.Go(func() error {
			gateway = r.execute(ctx, r.Gateway, logger)
			return nil
		})
		g.Go(func() error {
			direct = r.execute(ctx, r.Direct, logger)
			return nil
		})
		_ = g.Wait()

		if gateway > 0 {
			round.GatewayLatencies = append(round.GatewayLatencies, gateway)
		}
		if direct > 0 {
			round.DirectLatencies = append(round.DirectLatencies, direct)
		}

		if i < r.Requests-1 {
			if err := r.sleep(ctx, r.pairDelay()); err != nil {
				round.EndedAt = r.now()
				return round, err
			}
		}
	}

	round.EndedAt = r.now()
	metrics.RecordRound(round.Overhead())
	logger.Info("Round completed",
		zap.Duration("duration", round.Duration()),
		zap.Duration("overhead", round.Overhead()),
		zap.Int("gateway_samples", len(round.GatewayLatencies)),
		zap.Int("direct_samples", len(round.DirectLatencies)))
	return round, nil
}

func (r *Runner) execute(ctx context.Context, endpoint core.Endpoint, logger *zap.Logger) time.Duration {
	d, _ := r.Executor.Execute(ctx, Request{
		Label:      endpoint.Label,
		URL:        endpoint.URL,
		Headers:    r.headers(endpoint),
		Body:       r.Payload,
		MaxRetries: r.MaxRetries,
	})
	if d > 0 {
		logger.Info("Request completed",
			zap.String("endpoint", endpoint.DisplayName()),
			zap.Duration("latency", d))
	}
	return d
}

func (r *Runner) headers(endpoint core.Endpoint) map[string]string {
	headers := make(map[string]string, len(endpoint.Headers)+2)
	headers["Authorization"] = "Bearer " + r.APIKey
	headers["Content-Type"] = "application/json"
	for key, value := range endpoint.Headers {
		headers[key] = value
	}
	return headers
}

func (r *Runner) pairDelay() time.Duration {
	if r.PairDelay < 0 {
		return 0
	}
	return r.PairDelay
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
