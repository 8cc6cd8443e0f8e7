package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	values := []float64{3, 1, 2, 5, 4}
	summary := Describe(values)

	require.Equal(t, 5, summary.Count)
	require.InDelta(t, 3.0, summary.Mean, 1e-9)
	require.InDelta(t, 3.0, summary.Median, 1e-9)
	require.Equal(t, 1.0, summary.Min)
	require.Equal(t, 5.0, summary.Max)
	require.Equal(t, 5.0, summary.P95)
	require.True(t, summary.StdDevValid)
	require.InDelta(t, 1.5811388, summary.StdDev, 1e-6)

	// input untouched
	require.Equal(t, []float64{3, 1, 2, 5, 4}, values)
}

func TestPercentile95Truncates(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, 10.0, Percentile95(sorted))

	twenty := make([]float64, 20)
	for i := range twenty {
		twenty[i] = float64(i + 1)
	}
	require.Equal(t, 20.0, Percentile95(twenty))

	require.Equal(t, 7.0, Percentile95([]float64{7}))
	require.Equal(t, 0.0, Percentile95(nil))
}

func TestMedianEvenLength(t *testing.T) {
	require.InDelta(t, 2.5, Median([]float64{1, 2, 3, 4}), 1e-9)
	require.Equal(t, 0.0, Median(nil))
}

func TestStdDevUnderflow(t *testing.T) {
	sd, ok := SampleStdDev([]float64{1.5})
	require.False(t, ok)
	require.Zero(t, sd)

	summary := Describe([]float64{1.5})
	require.Equal(t, 1, summary.Count)
	require.False(t, summary.StdDevValid)
	require.Equal(t, 1.5, summary.P95)
}

func TestDescribeEmpty(t *testing.T) {
	summary := Describe(nil)
	require.True(t, summary.Empty())
	require.False(t, summary.StdDevValid)
	require.Zero(t, Mean(nil))
}
