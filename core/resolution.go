package core

import (
	"errors"
	"math/bits"
)

// ErrInvalidResolution is returned for a timebase with a zero tick
// duration or a counting period too short to schedule against.
var ErrInvalidResolution = errors.New("invalid timer resolution")

// Resolution describes the fixed timebase of a hardware counter.
//
// One tick lasts TickNum/TickDen nanoseconds. The rational form covers
// timebases that do not divide evenly into nanoseconds, such as a 3MHz
// prescaled clock (1000/3 ns) or a 16MHz/1024 AVR prescale (64000/1 ns),
// without floating point.
type Resolution struct {
	TickNum     uint64 // nanoseconds per tick, numerator
	TickDen     uint64 // nanoseconds per tick, denominator
	PeriodTicks uint32 // ticks in one full hardware counting period
}

// NanosPerTick builds a Resolution from an exact rational tick duration
func NanosPerTick(num, den uint64, periodTicks uint32) Resolution {
	return Resolution{TickNum: num, TickDen: den, PeriodTicks: periodTicks}
}

// MicrosPerTick builds a Resolution for a whole-microsecond tick
func MicrosPerTick(us uint64, periodTicks uint32) Resolution {
	return Resolution{TickNum: us * 1000, TickDen: 1, PeriodTicks: periodTicks}
}

// Validate checks that the timebase is usable for planning
func (r Resolution) Validate() error {
	if r.TickNum == 0 || r.TickDen == 0 {
		return ErrInvalidResolution
	}
	if r.PeriodTicks < 2 {
		return ErrInvalidResolution
	}
	return nil
}

// TicksFromMicros converts a microsecond duration to ticks, rounding
// half up to the nearest tick.
func (r Resolution) TicksFromMicros(us uint64) (uint64, error) {
	return r.ticksFrom(us, 1000)
}

// TicksFromSeconds converts a second duration to ticks, rounding half up
func (r Resolution) TicksFromSeconds(s uint64) (uint64, error) {
	return r.ticksFrom(s, 1000000000)
}

// ticksFrom converts units*scale nanoseconds to ticks.
// ticks = (ns*TickDen + TickNum/2) / TickNum, carried out in 128 bits so
// large durations survive the multiplications.
func (r Resolution) ticksFrom(units, scale uint64) (uint64, error) {
	hi, ns := bits.Mul64(units, scale)
	if hi != 0 {
		return 0, ErrDurationTooLong
	}
	hi, lo := bits.Mul64(ns, r.TickDen)
	lo, carry := bits.Add64(lo, r.TickNum/2, 0)
	hi += carry
	if hi >= r.TickNum {
		return 0, ErrDurationTooLong
	}
	q, _ := bits.Div64(hi, lo, r.TickNum)
	return q, nil
}

// MicrosFromTicks converts ticks back to microseconds, rounding half up.
// Saturates instead of failing; used for reports and statistics.
func (r Resolution) MicrosFromTicks(ticks uint64) uint64 {
	hi, lo := bits.Mul64(ticks, r.TickNum)
	div := r.TickDen * 1000
	lo, carry := bits.Add64(lo, div/2, 0)
	hi += carry
	if hi >= div {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, div)
	return q
}

// String renders the timebase as "num/den ns x period"
func (r Resolution) String() string {
	return utoa(r.TickNum) + "/" + utoa(r.TickDen) + " ns x " + utoa(uint64(r.PeriodTicks))
}
