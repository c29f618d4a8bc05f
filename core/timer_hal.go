package core

// TimerBackend is the abstract hardware timer interface that core code uses.
// Platform-specific implementations program the actual counter peripheral.
//
// A backend exposes exactly one expiry event source. Arm programs the
// counter so that a single expiry fires after the given number of ticks;
// the handler registered with SetExpiryHandler is invoked once per armed
// leg, possibly at interrupt priority. Backends whose counter runs up to a
// fixed overflow value translate the tick count into a preload internally;
// the controller always speaks "ticks until expiry".
type TimerBackend interface {
	// Configure prepares the counter for the given timebase.
	// Returns an error if the hardware cannot run at it.
	Configure(res Resolution) error

	// SetExpiryHandler registers the function invoked on counter expiry.
	// There is exactly one handler; later calls replace earlier ones.
	SetExpiryHandler(fn func())

	// Arm programs the counter for one expiry after ticks ticks and starts
	// counting. ticks never exceeds Resolution.PeriodTicks.
	Arm(ticks uint32)

	// Disarm stops the counter and suppresses further expiry events.
	Disarm()
}

// Global singleton used by firmware wiring.
var timerBackend TimerBackend

// SetTimerBackend is called by target-specific code to register its backend.
func SetTimerBackend(b TimerBackend) {
	timerBackend = b
}

// MustTimerBackend returns the registered backend or panics if missing.
func MustTimerBackend() TimerBackend {
	if timerBackend == nil {
		panic("timer backend not configured")
	}
	return timerBackend
}
