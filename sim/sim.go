// Package sim provides a manually fired timer backend for tests, examples,
// and host-side schedule replay.
package sim

import (
	"sync"

	"utimer/core"
)

// Backend implements core.TimerBackend with expiry events delivered by the
// caller instead of hardware. Arm records the requested leg; each Fire call
// plays one pending expiry into the registered handler.
type Backend struct {
	mu       sync.Mutex
	res      core.Resolution
	handler  func()
	armed    bool
	legTicks uint32
	legs     []uint32
	elapsed  uint64
}

// New creates an unarmed Backend.
func New() *Backend {
	return &Backend{}
}

// Configure stores the timebase.
func (b *Backend) Configure(res core.Resolution) error {
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

// Arm records a pending leg of the given tick count.
func (b *Backend) Arm(ticks uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.armed = true
	b.legTicks = ticks
	b.legs = append(b.legs, ticks)
}

// Disarm drops the pending leg, if any.
func (b *Backend) Disarm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.armed = false
}

// Fire delivers the pending expiry the way hardware would.
// Returns false if nothing is armed or no handler is registered.
func (b *Backend) Fire() bool {
	b.mu.Lock()
	if !b.armed || b.handler == nil {
		b.mu.Unlock()
		return false
	}
	b.armed = false
	b.elapsed += uint64(b.legTicks)
	fn := b.handler
	b.mu.Unlock()

	fn()
	return true
}

// RunToCompletion fires pending expiries until the schedule stops re-arming
// or maxLegs legs have fired. Returns the number of legs fired.
func (b *Backend) RunToCompletion(maxLegs int) int {
	fired := 0
	for fired < maxLegs && b.Fire() {
		fired++
	}
	return fired
}

// Armed reports the pending leg, if any.
func (b *Backend) Armed() (uint32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.armed {
		return 0, false
	}
	return b.legTicks, true
}

// Legs returns a copy of every leg armed so far.
func (b *Backend) Legs() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint32, len(b.legs))
	copy(out, b.legs)
	return out
}

// ElapsedTicks returns the summed tick counts of every fired leg.
func (b *Backend) ElapsedTicks() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.elapsed
}
