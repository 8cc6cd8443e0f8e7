package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/noveum/gatebench/internal/core"
	"github.com/noveum/gatebench/internal/metrics"
)

// Retry defaults.
const (
	DefaultMaxRetries     = 3
	DefaultFailureDelay   = time.Second
	DefaultRateLimitDelay = 5 * time.Second
)

// maxErrorBody caps how much of a failed response is kept for logs.
const maxErrorBody = 4 << 10

var retryAfterPattern = regexp.MustCompile(`try again in (\d+\.?\d*)s`)

// Request is one logical benchmark request.
type Request struct {
	Label      string
	URL        string
	Headers    map[string]string
	Body       []byte
	MaxRetries int
}

// RequestExecutor issues a request and reports its latency. A zero duration
// means no sample was obtained.
type RequestExecutor interface {
	Execute(ctx context.Context, req Request) (time.Duration, error)
}

// Executor times fully consumed streaming POSTs with rate limiting and retries.
type Executor struct {
	HTTPClient     *http.Client
	Limiters       map[string]*RateLimiter
	MaxRetries     int
	FailureDelay   time.Duration
	RateLimitDelay time.Duration
	// NewTimer supplies the retry timer; nil uses a real timer.
	NewTimer func() backoff.Timer
	Logger   *zap.Logger

	sequence atomic.Uint64

	mu       sync.Mutex
	counters map[string]*core.RequestCounters
}

// NewExecutor returns an executor with default retry settings.
func NewExecutor(client *http.Client, limiters map[string]*RateLimiter, logger *zap.Logger) *Executor {
	return &Executor{
		HTTPClient:     client,
		Limiters:       limiters,
		MaxRetries:     DefaultMaxRetries,
		FailureDelay:   DefaultFailureDelay,
		RateLimitDelay: DefaultRateLimitDelay,
		Logger:         logger,
	}
}

// Execute sends req until it succeeds or the attempt budget runs out. Every
// attempt, including rate-limited ones, counts against MaxRetries. On
// exhaustion it returns 0 and the last attempt's error.
func (e *Executor) Execute(ctx context.Context, req Request) (time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	id := fmt.Sprintf("%s_%d", req.Label, e.sequence.Add(1)-1)
	maxAttempts := e.attemptBudget(req)
	logger := e.logger().With(zap.String("request_id", id), zap.String("url", req.URL))

	e.count(req.Label, func(c *core.RequestCounters) { c.Requests++ })

	policy := &nextDelay{}
	var (
		elapsed time.Duration
		attempt int
	)

	operation := func() error {
		attempt++
		logger.Debug("Starting request",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts))

		d, err := e.attempt(ctx, req, logger)
		if err == nil {
			metrics.RecordAttempt(req.Label, "")
			elapsed = d
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}

		class := Classify(err)
		metrics.RecordAttempt(req.Label, class)
		e.count(req.Label, func(c *core.RequestCounters) {
			if class == ClassRateLimited {
				c.RateLimited++
			} else {
				c.Transient++
			}
		})

		policy.delay = e.delayFor(err)
		return err
	}

	notify := func(err error, wait time.Duration) {
		var rlErr *RateLimitedError
		if errors.As(err, &rlErr) {
			logger.Warn("Rate limit hit, waiting before retry",
				zap.Duration("retry_after", wait))
			return
		}
		logger.Error("Request attempt failed",
			zap.String("class", Classify(err)),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx)

	var timer backoff.Timer
	if e.NewTimer != nil {
		timer = e.NewTimer()
	}

	if err := backoff.RetryNotifyWithTimer(operation, b, notify, timer); err != nil {
		e.count(req.Label, func(c *core.RequestCounters) { c.Failures++ })
		metrics.RecordRequest(req.Label, false)
		logger.Error("Request failed, no sample recorded",
			zap.Int("attempts", attempt),
			zap.String("class", Classify(err)),
			zap.Error(err))
		return 0, err
	}

	e.count(req.Label, func(c *core.RequestCounters) { c.Successes++ })
	metrics.RecordRequest(req.Label, true)
	metrics.RecordLatency(req.Label, elapsed)
	logger.Debug("Request completed", zap.Duration("duration", elapsed))
	return elapsed, nil
}

// Stats returns a snapshot of the per-label counters.
func (e *Executor) Stats() map[string]core.RequestCounters {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]core.RequestCounters, len(e.counters))
	for label, c := range e.counters {
		out[label] = *c
	}
	return out
}

func (e *Executor) attempt(ctx context.Context, req Request, logger *zap.Logger) (time.Duration, error) {
	if err := e.Limiters[req.Label].Acquire(ctx); err != nil {
		return 0, backoff.Permanent(err)
	}
	e.count(req.Label, func(c *core.RequestCounters) { c.Attempts++ })

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := e.client().Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, backoff.Permanent(ctxErr)
		}
		return 0, &TransportError{Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	logger.Debug("Response received", zap.Int("status", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return 0, &StreamError{Err: readErr}
		}
		return 0, e.rateLimited(resp.StatusCode, body)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	chunks, err := drain(resp.Body)
	if err != nil {
		return 0, &StreamError{Chunks: chunks, Err: err}
	}

	elapsed := time.Since(start)
	logger.Debug("Stream consumed", zap.Int("chunks", chunks), zap.Duration("duration", elapsed))
	return elapsed, nil
}

// rateLimited builds the 429 error. A body that is not JSON is treated as
// an ordinary failed attempt.
func (e *Executor) rateLimited(status int, body []byte) error {
	if !gjson.ValidBytes(body) {
		return &StatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}

	message := gjson.GetBytes(body, "error.message").String()
	retryAfter, ok := ParseRetryAfter(message)
	if !ok {
		retryAfter = e.rateLimitDelay()
	}
	return &RateLimitedError{StatusCode: status, RetryAfter: retryAfter, Message: message}
}

// ParseRetryAfter extracts the delay from messages such as
// "Please try again in 2.5s".
func ParseRetryAfter(message string) (time.Duration, bool) {
	match := retryAfterPattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// drain reads the stream to EOF and returns the number of lines seen.
func drain(body io.Reader) (int, error) {
	reader := bufio.NewReader(body)
	chunks := 0
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			chunks++
		}
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
	}
}

func (e *Executor) delayFor(err error) time.Duration {
	var rlErr *RateLimitedError
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter
	}
	if e.FailureDelay > 0 {
		return e.FailureDelay
	}
	return DefaultFailureDelay
}

func (e *Executor) rateLimitDelay() time.Duration {
	if e.RateLimitDelay > 0 {
		return e.RateLimitDelay
	}
	return DefaultRateLimitDelay
}

func (e *Executor) attemptBudget(req Request) int {
	switch {
	case req.MaxRetries > 0:
		return req.MaxRetries
	case e.MaxRetries > 0:
		return e.MaxRetries
	default:
		return DefaultMaxRetries
	}
}

func (e *Executor) count(label string, fn func(c *core.RequestCounters)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counters == nil {
		e.counters = make(map[string]*core.RequestCounters)
	}
	c, ok := e.counters[label]
	if !ok {
		c = &core.RequestCounters{}
		e.counters[label] = c
	}
	fn(c)
}

func (e *Executor) client() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// nextDelay is a backoff.BackOff whose next interval is chosen by the
// attempt that just failed.
type nextDelay struct {
	delay time.Duration
}

func (n *nextDelay) NextBackOff() time.Duration { return n.delay }

func (n *nextDelay) Reset() { n.delay = 0 }
