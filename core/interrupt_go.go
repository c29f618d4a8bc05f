//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// Host builds have no interrupt controller to mask. Backends deliver
// expiry events from other goroutines instead, so the critical section
// must be a real lock rather than a no-op.
var critical sync.Mutex

// disableInterrupts enters the critical section shared with expiry delivery
func disableInterrupts() State {
	critical.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	critical.Unlock()
}
