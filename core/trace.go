package core

// TraceEvent captures one scheduling event for post-mortem analysis
type TraceEvent struct {
	Code uint8  // Event code
	Mode uint8  // Controller mode at the event
	N    uint32 // Leg ticks or overflows left, depending on the code
}

// Event codes
const (
	TraceArm      = 1 // Leg armed (N = leg ticks)
	TraceOverflow = 2 // Full period elapsed (N = overflows left)
	TraceFire     = 3 // Schedule completed, callback due
	TraceClear    = 4 // Schedule cancelled
	TraceSpurious = 5 // Expiry with no schedule live
	TraceFault    = 6 // Inconsistent state, failed safe to off
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	traceRing    [TraceRingSize]TraceEvent
	traceHead    uint8
	traceEnabled bool = true
)

// SetTraceEnabled enables or disables event capture
// Disable for benchmarks where even ring writes would affect timing
func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}

// traceRecord captures an event in the ring buffer
// Non-blocking and cheap enough for interrupt context
func traceRecord(code uint8, mode Mode, n uint32) {
	if !traceEnabled {
		return
	}
	idx := traceHead
	traceRing[idx] = TraceEvent{Code: code, Mode: uint8(mode), N: n}
	traceHead = (idx + 1) % TraceRingSize
}

// TraceEvents returns the captured events oldest first
// Call with the timer quiescent; the ring is not locked against the
// expiry path
func TraceEvents() []TraceEvent {
	events := make([]TraceEvent, 0, TraceRingSize)
	start := traceHead
	for i := uint8(0); i < TraceRingSize; i++ {
		idx := (start + i) % TraceRingSize
		evt := traceRing[idx]
		if evt.Code == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// TraceWriter is a function type for writing trace dump lines
type TraceWriter func(string)

// traceName returns the printable name of an event code
func traceName(code uint8) string {
	switch code {
	case TraceArm:
		return "ARM"
	case TraceOverflow:
		return "OVERFLOW"
	case TraceFire:
		return "FIRE"
	case TraceClear:
		return "CLEAR"
	case TraceSpurious:
		return "SPURIOUS"
	case TraceFault:
		return "FAULT!"
	default:
		return "UNKNOWN"
	}
}

// DumpTrace writes the captured events oldest first using w
// Call on shutdown or after a fault, with time-critical code stopped
func DumpTrace(w TraceWriter) {
	if w == nil {
		return
	}
	w("[TRACE] === Timer Event Dump ===")
	for _, evt := range TraceEvents() {
		w("[TRACE] " + traceName(evt.Code) +
			" mode=" + Mode(evt.Mode).String() +
			" n=" + utoa(uint64(evt.N)))
	}
	w("[TRACE] === End Dump ===")
}

// ClearTrace clears the captured events
func ClearTrace() {
	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceHead = 0
}
