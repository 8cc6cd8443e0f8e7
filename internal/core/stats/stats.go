// Package stats computes descriptive statistics over latency samples.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a sample of latencies expressed in seconds.
//
// StdDevValid is false when fewer than two samples were available; StdDev is
// then zero and must not be reported as a measurement.
type Summary struct {
	Count       int     `json:"count" yaml:"count"`
	Mean        float64 `json:"mean" yaml:"mean"`
	Median      float64 `json:"median" yaml:"median"`
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
	P95         float64 `json:"p95" yaml:"p95"`
	StdDev      float64 `json:"stddev" yaml:"stddev"`
	StdDevValid bool    `json:"stddev_valid" yaml:"stddev_valid"`
}

// Empty reports whether the summary was built from no samples.
func (s Summary) Empty() bool {
	return s.Count == 0
}

// Describe summarizes values. The input slice is not modified.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	summary := Summary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: Median(sorted),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		P95:    Percentile95(sorted),
	}
	summary.StdDev, summary.StdDevValid = SampleStdDev(sorted)
	return summary
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Median expects sorted input. Even-length samples average the two middle values.
func Median(sorted []float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 1:
		return sorted[n/2]
	default:
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
}

// Percentile95 expects sorted input and returns sorted[int(n*0.95)].
//
// This is a truncating rank lookup, not an interpolating percentile: for
// [1..10] it selects index 9, the value 10.
func Percentile95(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(float64(n) * 0.95)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// SampleStdDev returns the n-1 standard deviation. ok is false below two samples.
func SampleStdDev(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	sd := stat.StdDev(values, nil)
	if math.IsNaN(sd) {
		return 0, false
	}
	return sd, true
}
