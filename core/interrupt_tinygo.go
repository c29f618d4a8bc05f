//go:build tinygo

package core

import "runtime/interrupt"

// On hardware the expiry handler runs at interrupt priority, so the
// critical section masks interrupts around controller state changes.

// disableInterrupts masks interrupts and returns the state to restore
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts unmasks interrupts masked by a paired disableInterrupts
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
