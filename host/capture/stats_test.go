package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalStatsKnownSeries(t *testing.T) {
	var s IntervalStats
	for _, us := range []uint64{10, 20, 30, 40} {
		s.Add(us)
	}

	assert.Equal(t, uint64(4), s.Count())
	assert.Equal(t, uint64(10), s.Min())
	assert.Equal(t, uint64(40), s.Max())
	assert.InDelta(t, 25.0, s.Mean(), 1e-9)
	// Sample stddev of {10,20,30,40} is sqrt(500/3)
	assert.InDelta(t, 12.9099444, s.StdDev(), 1e-6)
}

func TestIntervalStatsSingleValue(t *testing.T) {
	var s IntervalStats
	s.Add(20000)

	assert.Equal(t, uint64(1), s.Count())
	assert.Equal(t, uint64(20000), s.Min())
	assert.Equal(t, uint64(20000), s.Max())
	assert.InDelta(t, 20000.0, s.Mean(), 1e-9)
	assert.Equal(t, 0.0, s.StdDev())
}

func TestDriftPPM(t *testing.T) {
	var s IntervalStats
	s.Add(20002)
	s.Add(20002)

	// 2us late on a 20ms nominal is 100 parts per million
	assert.InDelta(t, 100.0, s.DriftPPM(20000), 1e-6)
}

func TestDriftPPMEarly(t *testing.T) {
	var s IntervalStats
	s.Add(19998)

	assert.InDelta(t, -100.0, s.DriftPPM(20000), 1e-6)
}

func TestDriftPPMEmpty(t *testing.T) {
	var s IntervalStats

	assert.Equal(t, 0.0, s.DriftPPM(20000))
	assert.Equal(t, 0.0, s.DriftPPM(0))
}
