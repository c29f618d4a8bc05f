package core

import "errors"

// Controller construction and scheduling errors.
var (
	ErrBackendRequired = errors.New("timer backend required")
	ErrNoCallback      = errors.New("callback required")
)

// Mode is the scheduling mode of a Controller.
type Mode uint8

const (
	// ModeOff means no schedule is live and expiry events are ignored.
	ModeOff Mode = iota
	// ModeTimeout runs the callback once, then returns to ModeOff.
	ModeTimeout
	// ModeInterval runs the callback every elapsed duration until cleared.
	ModeInterval
)

// String returns the lowercase mode name
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeTimeout:
		return "timeout"
	case ModeInterval:
		return "interval"
	default:
		return "invalid"
	}
}

// Status is a consistent snapshot of a Controller's schedule state.
type Status struct {
	Mode           Mode
	Plan           Plan
	OverflowsLeft  uint32
	RemainderArmed bool
}

// Controller drives a single hardware counter through schedules longer
// than one counting period. A duration is planned as a run of full-period
// legs followed by one remainder leg; the controller walks the plan one
// expiry event at a time and invokes the user callback when the final leg
// elapses. Timeouts run once, intervals reload the original plan so every
// cycle repeats the exact same legs.
//
// One Controller owns one backend. State shared with the expiry path is
// only mutated inside critical sections. The user callback is invoked in
// the backend's expiry context after the critical section is released, so
// a callback may safely call back into the controller.
type Controller struct {
	backend TimerBackend
	res     Resolution

	mode           Mode
	plan           Plan
	overflowsLeft  uint32
	remainderArmed bool
	callback       func()
}

// NewController configures backend for the given timebase and registers
// the expiry handler. The backend must not deliver expiry events before
// the first Arm call.
func NewController(backend TimerBackend, res Resolution) (*Controller, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	if err := backend.Configure(res); err != nil {
		return nil, err
	}
	c := &Controller{backend: backend, res: res}
	backend.SetExpiryHandler(c.onExpire)
	return c, nil
}

// Resolution returns the timebase the controller was built with
func (c *Controller) Resolution() Resolution {
	return c.res
}

// SetTimeoutMicros schedules cb to run once after us microseconds
func (c *Controller) SetTimeoutMicros(us uint64, cb func()) error {
	ticks, err := c.res.TicksFromMicros(us)
	if err != nil {
		return err
	}
	return c.start(ModeTimeout, ticks, cb)
}

// SetTimeoutSeconds schedules cb to run once after s seconds
func (c *Controller) SetTimeoutSeconds(s uint64, cb func()) error {
	ticks, err := c.res.TicksFromSeconds(s)
	if err != nil {
		return err
	}
	return c.start(ModeTimeout, ticks, cb)
}

// SetIntervalMicros schedules cb to run every us microseconds
func (c *Controller) SetIntervalMicros(us uint64, cb func()) error {
	ticks, err := c.res.TicksFromMicros(us)
	if err != nil {
		return err
	}
	return c.start(ModeInterval, ticks, cb)
}

// SetIntervalSeconds schedules cb to run every s seconds
func (c *Controller) SetIntervalSeconds(s uint64, cb func()) error {
	ticks, err := c.res.TicksFromSeconds(s)
	if err != nil {
		return err
	}
	return c.start(ModeInterval, ticks, cb)
}

// SetTimeoutTicks schedules cb to run once after a raw tick count
func (c *Controller) SetTimeoutTicks(ticks uint64, cb func()) error {
	return c.start(ModeTimeout, ticks, cb)
}

// SetIntervalTicks schedules cb to run every ticks ticks
func (c *Controller) SetIntervalTicks(ticks uint64, cb func()) error {
	return c.start(ModeInterval, ticks, cb)
}

// ClearTimer cancels the live schedule, if any, and releases the callback.
// Idempotent. An expiry already being delivered may still observe the
// cleared state; it is ignored.
func (c *Controller) ClearTimer() {
	state := disableInterrupts()
	c.backend.Disarm()
	traceRecord(TraceClear, c.mode, 0)
	c.mode = ModeOff
	c.plan = Plan{}
	c.overflowsLeft = 0
	c.remainderArmed = false
	c.callback = nil
	restoreInterrupts(state)
}

// Status returns a snapshot taken inside the critical section
func (c *Controller) Status() Status {
	state := disableInterrupts()
	s := Status{
		Mode:           c.mode,
		Plan:           c.plan,
		OverflowsLeft:  c.overflowsLeft,
		RemainderArmed: c.remainderArmed,
	}
	restoreInterrupts(state)
	return s
}

// start validates and plans the new schedule before touching any state.
// On error the previous schedule keeps running.
func (c *Controller) start(mode Mode, ticks uint64, cb func()) error {
	if cb == nil {
		return ErrNoCallback
	}
	plan, err := ComputePlan(ticks, c.res.PeriodTicks)
	if err != nil {
		return err
	}

	state := disableInterrupts()
	c.backend.Disarm()
	c.mode = mode
	c.plan = plan
	c.callback = cb
	c.armFirstLeg()
	restoreInterrupts(state)
	return nil
}

// armFirstLeg arms the opening leg of c.plan. Interval completion reuses
// it to restart the cycle. Caller holds the critical section.
func (c *Controller) armFirstLeg() {
	if c.plan.Overflows == 0 {
		c.overflowsLeft = 0
		c.remainderArmed = true
		traceRecord(TraceArm, c.mode, c.plan.Remainder)
		c.backend.Arm(c.plan.Remainder)
		return
	}
	c.overflowsLeft = c.plan.Overflows
	c.remainderArmed = false
	traceRecord(TraceArm, c.mode, c.res.PeriodTicks)
	c.backend.Arm(c.res.PeriodTicks)
}

// onExpire consumes one hardware expiry event. It runs at interrupt
// priority on hardware targets and must never block or panic.
func (c *Controller) onExpire() {
	var fire func()

	state := disableInterrupts()
	switch {
	case c.mode == ModeOff:
		// Stale event from a schedule cleared while it was in flight
		traceRecord(TraceSpurious, c.mode, 0)

	case c.overflowsLeft > 0:
		c.overflowsLeft--
		traceRecord(TraceOverflow, c.mode, c.overflowsLeft)
		switch {
		case c.overflowsLeft > 0:
			c.backend.Arm(c.res.PeriodTicks)
		case c.plan.Remainder > 0:
			c.remainderArmed = true
			traceRecord(TraceArm, c.mode, c.plan.Remainder)
			c.backend.Arm(c.plan.Remainder)
		default:
			// Duration was an exact multiple of the counting period
			fire = c.finish()
		}

	case c.remainderArmed:
		fire = c.finish()

	default:
		// Armed state matches no leg. Fail safe rather than guess.
		traceRecord(TraceFault, c.mode, 0)
		c.mode = ModeOff
		c.callback = nil
		c.remainderArmed = false
		c.backend.Disarm()
	}
	restoreInterrupts(state)

	if fire != nil {
		fire()
	}
}

// finish completes the live schedule and returns the callback to invoke
// once the critical section is released. Caller holds the critical
// section.
func (c *Controller) finish() func() {
	cb := c.callback
	if cb == nil {
		traceRecord(TraceFault, c.mode, 0)
		c.mode = ModeOff
		c.remainderArmed = false
		c.backend.Disarm()
		return nil
	}
	traceRecord(TraceFire, c.mode, 0)
	switch c.mode {
	case ModeTimeout:
		c.mode = ModeOff
		c.callback = nil
		c.remainderArmed = false
		c.backend.Disarm()
	case ModeInterval:
		c.armFirstLeg()
	}
	return cb
}
