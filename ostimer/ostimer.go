//go:build !tinygo

// Package ostimer implements core.TimerBackend on the operating system
// scheduler. It is the host-side analog of delegating to an OS software
// timer and keeps schedules runnable without hardware.
package ostimer

import (
	"sync"
	"time"

	"utimer/core"
)

// Backend schedules expiry events with time.AfterFunc. Legs shorter than
// the OS timer granularity are delivered late, never dropped. Every Arm
// and Disarm bumps a generation counter so a fire from a replaced leg is
// discarded instead of reaching the handler. A fire that passes the
// generation check in the same instant the leg is replaced can still go
// through; the handler sees it as one early expiry, the same way an MCU
// sees an interrupt latched just before re-arming.
type Backend struct {
	mu      sync.Mutex
	res     core.Resolution
	handler func()
	timer   *time.Timer
	gen     uint64
}

// New creates an unarmed Backend.
func New() *Backend {
	return &Backend{}
}

// Configure stores the timebase used to convert leg ticks to durations.
func (b *Backend) Configure(res core.Resolution) error {
	if err := res.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res = res
	return nil
}

// SetExpiryHandler registers the expiry handler.
func (b *Backend) SetExpiryHandler(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = fn
}

// Arm schedules one expiry after the given number of ticks.
func (b *Backend) Arm(ticks uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	gen := b.gen
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.legDuration(ticks), func() {
		b.expire(gen)
	})
}

// Disarm cancels the pending expiry, if any.
func (b *Backend) Disarm() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// expire forwards a fire to the handler unless the leg was replaced or
// cancelled after the fire was already scheduled.
func (b *Backend) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.handler == nil {
		b.mu.Unlock()
		return
	}
	fn := b.handler
	b.mu.Unlock()

	fn()
}

// legDuration converts ticks to wall-clock time, rounding half up.
// Caller holds b.mu.
func (b *Backend) legDuration(ticks uint32) time.Duration {
	ns := (uint64(ticks)*b.res.TickNum + b.res.TickDen/2) / b.res.TickDen
	return time.Duration(ns)
}
