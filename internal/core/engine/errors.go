package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RateLimitedError is returned for a 429 response. RetryAfter is the delay
// parsed from the error message, or the configured default.
type RateLimitedError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitedError) Error() string {
	if e == nil {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited: status %d: retry after %s: %s", e.StatusCode, e.RetryAfter, e.Message)
}

// StatusError is returned for any other non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "unexpected status"
	}
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, e.Body)
}

// StreamError is returned when reading a 200 response body fails part way.
type StreamError struct {
	Chunks int
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream read failed after %d chunks: %v", e.Chunks, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// TransportError wraps connection-level failures from the HTTP client.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Error classes used in logs and counters.
const (
	ClassRateLimited = "rate_limited"
	ClassStatus      = "http_status"
	ClassStream      = "stream"
	ClassTimeout     = "timeout"
	ClassTransport   = "transport"
	ClassCanceled    = "canceled"
	ClassUnknown     = "unknown"
)

// Classify maps an attempt error to a coarse class.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		rlErr     *RateLimitedError
		statusErr *StatusError
		streamErr *StreamError
		transErr  *TransportError
	)

	switch {
	case errors.As(err, &rlErr):
		return ClassRateLimited
	case errors.As(err, &statusErr):
		return ClassStatus
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.As(err, &streamErr):
		return ClassStream
	case errors.As(err, &transErr):
		return ClassTransport
	default:
		return ClassUnknown
	}
}
