package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noveum/gatebench/internal/core"
)

// DefaultRoundCooldown separates consecutive rounds.
const DefaultRoundCooldown = 5 * time.Second

// RoundRunner runs one numbered round.
type RoundRunner interface {
	RunRound(ctx context.Context, number int) (*core.TestRound, error)
}

// Orchestrator runs rounds sequentially with a cooldown between them.
type Orchestrator struct {
	Runner        RoundRunner
	RoundCooldown time.Duration
	Sleep         SleepFunc
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Run executes rounds 1..rounds and returns them in order. On cancellation
// the rounds completed so far are returned together with the context error.
func (o *Orchestrator) Run(ctx context.Context, rounds int) ([]*core.TestRound, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Runner == nil {
		return nil, fmt.Errorf("round runner is required")
	}
	if rounds <= 0 {
		return nil, fmt.Errorf("rounds must be positive, got %d", rounds)
	}

	logger := o.logger()
	start := o.now()
	results := make([]*core.TestRound, 0, rounds)

	for n := 1; n <= rounds; n++ {
		round, err := o.Runner.RunRound(ctx, n)
		if round != nil {
			results = append(results, round)
		}
		if err != nil {
			logger.Warn("Test run interrupted", zap.Int("round", n), zap.Error(err))
			return results, err
		}

		if n < rounds {
			logger.Info("Waiting between rounds", zap.Duration("cooldown", o.cooldown()))
			if err := o.sleep(ctx, o.cooldown()); err != nil {
				logger.Warn("Test run interrupted", zap.Int("round", n), zap.Error(err))
				return results, err
			}
		}
	}

	logger.Info("All test rounds completed",
		zap.Int("rounds", len(results)),
		zap.Duration("elapsed", o.now().Sub(start)))
	return results, nil
}

func (o *Orchestrator) cooldown() time.Duration {
	if o.RoundCooldown < 0 {
		return 0
	}
	return o.RoundCooldown
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}
