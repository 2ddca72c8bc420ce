package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	mean, err := Mean([]uint64{90_000_000, 100_000_000, 110_000_000, 120_000_000})
	require.NoError(t, err)
	assert.Equal(t, uint64(105_000_000), mean)
}

func TestMeanEmptyInput(t *testing.T) {
	_, err := Mean(nil)
	assert.Error(t, err)
}

func TestMinMax(t *testing.T) {
	values := []uint64{90_000_000, 120_000_000, 100_000_000, 110_000_000}
	min, err := Min(values)
	require.NoError(t, err)
	assert.Equal(t, uint64(90_000_000), min)

	max, err := Max(values)
	require.NoError(t, err)
	assert.Equal(t, uint64(120_000_000), max)
}

func TestVarianceAndStdDev(t *testing.T) {
	values := []uint64{90_000_000, 100_000_000, 110_000_000, 120_000_000}
	mean, err := Mean(values)
	require.NoError(t, err)

	variance, err := Variance(values, mean)
	require.NoError(t, err)
	assert.Equal(t, uint64(166_666_666_666_666), variance)

	stddev, err := StdDev(values)
	require.NoError(t, err)
	assert.Equal(t, uint64(12909944), stddev)
}

func TestVarianceRequiresTwoValues(t *testing.T) {
	_, err := Variance([]uint64{1}, 1)
	assert.Error(t, err)
}

func TestPercentile25And75(t *testing.T) {
	values := []uint64{90_000_000, 100_000_000, 110_000_000, 120_000_000}

	p25, err := Percentile(values, 25)
	require.NoError(t, err)
	assert.Equal(t, uint64(97_500_000), p25)

	p75, err := Percentile(values, 75)
	require.NoError(t, err)
	assert.Equal(t, uint64(112_500_000), p75)
}

func TestPercentileBoundaries(t *testing.T) {
	values := []uint64{90_000_000, 100_000_000, 110_000_000, 120_000_000}

	p0, err := Percentile(values, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(90_000_000), p0)

	p100, err := Percentile(values, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(120_000_000), p100)
}

func TestPercentileRejectsOutOfRange(t *testing.T) {
	_, err := Percentile([]uint64{1, 2, 3}, 101)
	assert.Error(t, err)

	_, err = Percentile([]uint64{1, 2, 3}, -1)
	assert.Error(t, err)
}

func TestPercentileSingleValue(t *testing.T) {
	p, err := Percentile([]uint64{42}, 37)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p)
}

func TestMedian(t *testing.T) {
	median, err := Median([]uint64{90_000_000, 100_000_000, 110_000_000, 120_000_000})
	require.NoError(t, err)
	assert.Equal(t, uint64(105_000_000), median)
}

func TestEmptyInputErrors(t *testing.T) {
	_, err := Min(nil)
	assert.Error(t, err)
	_, err = Max(nil)
	assert.Error(t, err)
	_, err = Percentile(nil, 50)
	assert.Error(t, err)
}
