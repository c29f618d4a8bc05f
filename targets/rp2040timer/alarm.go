//go:build rp2040

// Package rp2040timer implements the timer backend on the RP2040 TIMER
// peripheral. The peripheral counts microseconds in a 64-bit counter and
// fires an alarm when the low 32 bits match a target register. Alarm 1
// is used here; the TinyGo runtime schedules its own sleeps on alarm 0.
package rp2040timer

import (
	"device/rp"
	"errors"
	"runtime/interrupt"

	"utimer/core"
)

// ErrUnsupportedResolution is returned for a timebase the TIMER
// peripheral cannot run at. The counter always ticks at one microsecond.
var ErrUnsupportedResolution = errors.New("timer counts microseconds only")

const (
	tickNanos = 1000

	// The alarm comparator matches the low 32 bits of the counter on
	// equality. Capping a leg at half the 32-bit space keeps a target
	// that is already behind the counter from reading as far ahead.
	maxLegTicks = 1 << 31

	alarmBit = 1 << 1 // alarm 1
)

// TimerResolution returns the fixed timebase of the TIMER peripheral
func TimerResolution() core.Resolution {
	return core.MicrosPerTick(1, maxLegTicks)
}

// Backend programs alarm 1 of the TIMER peripheral. One expiry fires per
// Arm call; the registered handler runs at interrupt priority.
type Backend struct {
	handler    func()
	irqEnabled bool
}

var active *Backend

// New returns the alarm backend singleton
func New() *Backend {
	if active == nil {
		active = &Backend{}
	}
	return active
}

// Configure checks the timebase against the hardware and enables the
// alarm interrupt. The alarm stays disarmed until the first Arm call.
func (b *Backend) Configure(res core.Resolution) error {
	if res.TickNum != tickNanos*res.TickDen {
		return ErrUnsupportedResolution
	}
	if res.PeriodTicks > maxLegTicks {
		return ErrUnsupportedResolution
	}
	b.Disarm()
	if !b.irqEnabled {
		intr := interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarm)
		intr.Enable()
		b.irqEnabled = true
	}
	return nil
}

// SetExpiryHandler registers the function run on alarm expiry
func (b *Backend) SetExpiryHandler(fn func()) {
	b.handler = fn
}

// Arm programs one expiry ticks microseconds from now. Writing the
// target register arms the comparator.
func (b *Backend) Arm(ticks uint32) {
	rp.TIMER.ARMED.Set(alarmBit) // drop any previous target
	rp.TIMER.INTR.Set(alarmBit)  // and any latched expiry
	rp.TIMER.INTF.ClearBits(alarmBit)
	rp.TIMER.INTE.SetBits(alarmBit)

	now := rp.TIMER.TIMERAWL.Get()
	rp.TIMER.ALARM1.Set(now + ticks)

	// The comparator only matches equality. If the target slipped into
	// the past before the write landed, force the interrupt instead of
	// waiting out a full 32-bit wrap.
	if rp.TIMER.TIMERAWL.Get()-now >= ticks {
		rp.TIMER.INTF.SetBits(alarmBit)
	}
}

// Disarm cancels the pending target and masks the alarm interrupt
func (b *Backend) Disarm() {
	rp.TIMER.ARMED.Set(alarmBit)
	rp.TIMER.INTE.ClearBits(alarmBit)
	rp.TIMER.INTF.ClearBits(alarmBit)
	rp.TIMER.INTR.Set(alarmBit)
}

func handleAlarm(interrupt.Interrupt) {
	rp.TIMER.INTF.ClearBits(alarmBit)
	rp.TIMER.INTR.Set(alarmBit)

	b := active
	if b == nil || b.handler == nil {
		return
	}
	b.handler()
}

// ReadMicros reads the full 64-bit microsecond counter. The high word is
// read twice to detect a low-word rollover between the reads.
func ReadMicros() uint64 {
	for {
		hi := rp.TIMER.TIMERAWH.Get()
		lo := rp.TIMER.TIMERAWL.Get()
		if rp.TIMER.TIMERAWH.Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}
