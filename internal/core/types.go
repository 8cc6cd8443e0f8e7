package core

import (
	"time"
)

// Endpoint labels used to key rate limiters, counters and request identifiers.
const (
	LabelGateway = "gateway"
	LabelDirect  = "direct"
)

// Endpoint describes one side of a request pair.
type Endpoint struct {
	Label   string            `json:"label" yaml:"label"`
	Name    string            `json:"name" yaml:"name"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"-" yaml:"-"`
}

// DisplayName returns Name, falling back to Label.
func (e Endpoint) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Label
}

// TestRound collects the latencies of one benchmark round.
//
// Only successful requests are recorded; a request that exhausted its retries
// contributes no sample to either slice.
type TestRound struct {
	Number           int
	GatewayLatencies []time.Duration
	DirectLatencies  []time.Duration
	StartedAt        time.Time
	EndedAt          time.Time
}

// Duration is the wall-clock length of the round, or 0 while it is unfinished.
func (r *TestRound) Duration() time.Duration {
	if r == nil || r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// GatewayMean is the mean gateway latency, 0 when there are no samples.
func (r *TestRound) GatewayMean() time.Duration {
	if r == nil {
		return 0
	}
	return meanDuration(r.GatewayLatencies)
}

// DirectMean is the mean direct latency, 0 when there are no samples.
func (r *TestRound) DirectMean() time.Duration {
	if r == nil {
		return 0
	}
	return meanDuration(r.DirectLatencies)
}

// Overhead is GatewayMean minus DirectMean. Positive means the gateway was slower.
func (r *TestRound) Overhead() time.Duration {
	return r.GatewayMean() - r.DirectMean()
}

func meanDuration(values []time.Duration) time.Duration {
	if len(values) == 0 {
		return 0
	}
	var total time.Duration
	for _, v := range values {
		total += v
	}
	return total / time.Duration(len(values))
}

// RequestCounters tracks request outcomes for one endpoint label.
type RequestCounters struct {
	Requests    int `json:"requests" yaml:"requests"`
	Attempts    int `json:"attempts" yaml:"attempts"`
	Successes   int `json:"successes" yaml:"successes"`
	Failures    int `json:"failures" yaml:"failures"`
	RateLimited int `json:"rate_limited" yaml:"rate_limited"`
	Transient   int `json:"transient_errors" yaml:"transient_errors"`
}

// SuccessRate is Successes/Requests, 0 when no request was made.
func (c RequestCounters) SuccessRate() float64 {
	if c.Requests == 0 {
		return 0
	}
	return float64(c.Successes) / float64(c.Requests)
}
