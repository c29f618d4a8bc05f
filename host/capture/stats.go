package capture

import (
	"io"
	"math"
)

// IntervalStats accumulates summary statistics over callback intervals
// without storing the series. Welford's recurrence keeps the variance
// numerically stable over long captures.
type IntervalStats struct {
	count uint64
	min   uint64
	max   uint64
	mean  float64
	m2    float64
}

// Add folds one interval, in microseconds, into the summary
func (s *IntervalStats) Add(us uint64) {
	s.count++
	if s.count == 1 || us < s.min {
		s.min = us
	}
	if us > s.max {
		s.max = us
	}
	delta := float64(us) - s.mean
	s.mean += delta / float64(s.count)
	s.m2 += delta * (float64(us) - s.mean)
}

// Count returns how many intervals were folded in
func (s *IntervalStats) Count() uint64 {
	return s.count
}

// Min returns the shortest observed interval in microseconds
func (s *IntervalStats) Min() uint64 {
	return s.min
}

// Max returns the longest observed interval in microseconds
func (s *IntervalStats) Max() uint64 {
	return s.max
}

// Mean returns the mean interval in microseconds
func (s *IntervalStats) Mean() float64 {
	return s.mean
}

// StdDev returns the sample standard deviation in microseconds
func (s *IntervalStats) StdDev() float64 {
	if s.count < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.count-1))
}

// DriftPPM returns the mean deviation from the nominal interval in parts
// per million. Positive means the callbacks run late.
func (s *IntervalStats) DriftPPM(nominalMicros uint64) float64 {
	if s.count == 0 || nominalMicros == 0 {
		return 0
	}
	return (s.mean - float64(nominalMicros)) / float64(nominalMicros) * 1e6
}

// SummarizeSession folds every interval of a stored session into stats.
// Intervals are the deltas between successive firmware clocks, so a
// timeout session with its single report yields an empty summary.
func SummarizeSession(r *Reader) (IntervalStats, error) {
	var stats IntervalStats
	var prev uint64
	have := false
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		if have {
			stats.Add(rec.Micros - prev)
		}
		prev = rec.Micros
		have = true
	}
}
