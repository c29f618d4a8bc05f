package core

import "errors"

// Planning errors returned by ComputePlan and the Controller entry points.
var (
	// ErrZeroDuration is returned for durations that are zero or round to
	// zero ticks. The running schedule, if any, is left untouched.
	ErrZeroDuration = errors.New("duration is zero ticks")

	// ErrDurationTooLong is returned when a duration needs more full
	// counting periods than the schedule bookkeeping can hold.
	ErrDurationTooLong = errors.New("duration exceeds schedulable range")
)

// maxOverflows is the largest full-period count a Plan can carry
const maxOverflows = 1<<32 - 1

// Plan is the decomposition of a tick count into whole hardware counting
// periods plus one final partial period.
//
// Overflows*periodTicks + Remainder reproduces the planned tick count
// exactly; rounding happened earlier, in the duration-to-tick conversion.
type Plan struct {
	Overflows uint32 // full counting periods before the final leg
	Remainder uint32 // ticks in the final leg, always < periodTicks
}

// ComputePlan splits a tick count across full periods of periodTicks.
// Zero tick counts and counts needing more than maxOverflows full periods
// are rejected rather than silently adjusted.
func ComputePlan(ticks uint64, periodTicks uint32) (Plan, error) {
	if periodTicks < 2 {
		return Plan{}, ErrInvalidResolution
	}
	if ticks == 0 {
		return Plan{}, ErrZeroDuration
	}
	overflows := ticks / uint64(periodTicks)
	if overflows > maxOverflows {
		return Plan{}, ErrDurationTooLong
	}
	return Plan{
		Overflows: uint32(overflows),
		Remainder: uint32(ticks % uint64(periodTicks)),
	}, nil
}

// Ticks returns the total tick count the plan stands for
func (p Plan) Ticks(periodTicks uint32) uint64 {
	return uint64(p.Overflows)*uint64(periodTicks) + uint64(p.Remainder)
}
