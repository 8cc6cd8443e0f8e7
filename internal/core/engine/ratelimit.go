package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWindow is the rolling window used when RateLimiter.Window is unset.
const DefaultWindow = time.Minute

// RateLimiter admits at most Limit requests per rolling Window for one endpoint.
//
// Each endpoint gets its own limiter; limiters never block each other.
// Callers of the same limiter queue on its mutex, including while one of
// them is waiting for the window to free up.
type RateLimiter struct {
	Name   string
	Limit  int
	Window time.Duration
	Clock  func() time.Time
	Sleep  SleepFunc
	Logger *zap.Logger

	mu       sync.Mutex
	requests []time.Time
}

// NewRateLimiter returns a limiter allowing limit requests per window.
func NewRateLimiter(name string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		Name:   name,
		Limit:  limit,
		Window: window,
	}
}

// Acquire blocks until one more request fits in the trailing window, then
// records it. A nil limiter or a non-positive Limit admits immediately.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	if r == nil || r.Limit <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	window := r.window()
	for {
		now := r.now()
		r.prune(now, window)

		if len(r.requests) < r.Limit {
			r.requests = append(r.requests, now)
			return nil
		}

		// Loop: the admission time is read again after the wait.
		wait := window - now.Sub(r.requests[0])
		r.logger().Debug("Rate limit reached, waiting",
			zap.String("endpoint", r.Name),
			zap.Int("limit", r.Limit),
			zap.Duration("wait", wait))

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Recorded returns the number of admissions inside the current window.
func (r *RateLimiter) Recorded() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now(), r.window())
	return len(r.requests)
}

func (r *RateLimiter) prune(now time.Time, window time.Duration) {
	kept := r.requests[:0]
	for _, t := range r.requests {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	r.requests = kept
}

func (r *RateLimiter) window() time.Duration {
	if r.Window <= 0 {
		return DefaultWindow
	}
	return r.Window
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (r *RateLimiter) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
