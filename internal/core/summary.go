package core

import (
	"math"
	"time"

	"github.com/noveum/gatebench/internal/core/stats"
)

// Winner names the faster side of a round.
type Winner string

const (
	WinnerGateway Winner = "gateway"
	WinnerDirect  Winner = "direct"
	WinnerTie     Winner = "tie"
)

// Verdict is the outcome of the overhead-versus-spread heuristic.
type Verdict string

const (
	VerdictGatewayFaster    Verdict = "gateway_faster"
	VerdictDirectFaster     Verdict = "direct_faster"
	VerdictNoDifference     Verdict = "no_significant_difference"
	VerdictInsufficientData Verdict = "insufficient_data"
)

// RoundSummary reports one round. Latencies are in seconds.
type RoundSummary struct {
	Round          int     `json:"round" yaml:"round"`
	Duration       float64 `json:"duration" yaml:"duration"`
	GatewayMean    float64 `json:"gateway_mean" yaml:"gateway_mean"`
	DirectMean     float64 `json:"direct_mean" yaml:"direct_mean"`
	Overhead       float64 `json:"overhead" yaml:"overhead"`
	GatewaySamples int     `json:"gateway_samples" yaml:"gateway_samples"`
	DirectSamples  int     `json:"direct_samples" yaml:"direct_samples"`
	Winner         Winner  `json:"winner" yaml:"winner"`
}

// EndpointReport holds pooled statistics for one endpoint across all rounds.
type EndpointReport struct {
	Endpoint Endpoint         `json:"endpoint" yaml:"endpoint"`
	Latency  stats.Summary    `json:"latency" yaml:"latency"`
	Requests *RequestCounters `json:"requests,omitempty" yaml:"requests,omitempty"`
}

// Tally counts round winners.
type Tally struct {
	GatewayFaster int `json:"gateway_faster" yaml:"gateway_faster"`
	DirectFaster  int `json:"direct_faster" yaml:"direct_faster"`
	Ties          int `json:"ties" yaml:"ties"`
}

// Report is the full result of a benchmark run.
type Report struct {
	Rounds              []RoundSummary `json:"rounds" yaml:"rounds"`
	Gateway             EndpointReport `json:"gateway" yaml:"gateway"`
	Direct              EndpointReport `json:"direct" yaml:"direct"`
	AverageOverhead     float64        `json:"average_overhead" yaml:"average_overhead"`
	OverheadStdDev      float64        `json:"overhead_stddev" yaml:"overhead_stddev"`
	OverheadStdDevValid bool           `json:"overhead_stddev_valid" yaml:"overhead_stddev_valid"`
	Tally               Tally          `json:"tally" yaml:"tally"`
	Verdict             Verdict        `json:"verdict" yaml:"verdict"`
}

// Summarize builds a report from completed rounds. It has no side effects.
//
// Failed requests never reached the rounds' latency slices, so every
// statistic here describes successful requests only.
func Summarize(rounds []*TestRound, gateway, direct Endpoint) *Report {
	report := &Report{
		Rounds:  make([]RoundSummary, 0, len(rounds)),
		Gateway: EndpointReport{Endpoint: gateway},
		Direct:  EndpointReport{Endpoint: direct},
	}

	var (
		pooledGateway []float64
		pooledDirect  []float64
		overheads     []float64
	)

	for i, round := range rounds {
		if round == nil {
			continue
		}
		number := round.Number
		if number == 0 {
			number = i + 1
		}

		overhead := round.Overhead().Seconds()
		winner := roundWinner(overhead)
		switch winner {
		case WinnerGateway:
			report.Tally.GatewayFaster++
		case WinnerDirect:
			report.Tally.DirectFaster++
		default:
			report.Tally.Ties++
		}

		report.Rounds = append(report.Rounds, RoundSummary{
			Round:          number,
			Duration:       round.Duration().Seconds(),
			GatewayMean:    round.GatewayMean().Seconds(),
			DirectMean:     round.DirectMean().Seconds(),
			Overhead:       overhead,
			GatewaySamples: len(round.GatewayLatencies),
			DirectSamples:  len(round.DirectLatencies),
			Winner:         winner,
		})

		pooledGateway = append(pooledGateway, seconds(round.GatewayLatencies)...)
		pooledDirect = append(pooledDirect, seconds(round.DirectLatencies)...)
		overheads = append(overheads, overhead)
	}

	report.Gateway.Latency = stats.Describe(pooledGateway)
	report.Direct.Latency = stats.Describe(pooledDirect)

	report.AverageOverhead = stats.Mean(overheads)
	report.OverheadStdDev, report.OverheadStdDevValid = stats.SampleStdDev(overheads)
	report.Verdict = verdict(report.AverageOverhead, report.OverheadStdDev, report.OverheadStdDevValid)

	return report
}

// AttachCounters copies per-label request counters into the report.
func (r *Report) AttachCounters(counters map[string]RequestCounters) {
	if r == nil || counters == nil {
		return
	}
	if c, ok := counters[r.Gateway.Endpoint.Label]; ok {
		r.Gateway.Requests = &c
	}
	if c, ok := counters[r.Direct.Endpoint.Label]; ok {
		r.Direct.Requests = &c
	}
}

func roundWinner(overhead float64) Winner {
	switch {
	case overhead > 0:
		return WinnerDirect
	case overhead < 0:
		return WinnerGateway
	default:
		return WinnerTie
	}
}

// verdict declares a side consistently faster when the mean overhead exceeds
// its own spread across rounds. Not a statistical test.
func verdict(avg, stddev float64, valid bool) Verdict {
	if !valid {
		return VerdictInsufficientData
	}
	if math.Abs(avg) > stddev {
		if avg > 0 {
			return VerdictDirectFaster
		}
		return VerdictGatewayFaster
	}
	return VerdictNoDifference
}

func seconds(values []time.Duration) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		out = append(out, v.Seconds())
	}
	return out
}
