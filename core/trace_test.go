package core

import (
	"strings"
	"testing"
)

func TestTraceCapturesScheduleLifecycle(t *testing.T) {
	ClearTrace()
	c, backend := newTestController(t, 256)

	if err := c.SetTimeoutTicks(300, func() {}); err != nil {
		t.Fatalf("SetTimeoutTicks: %v", err)
	}
	backend.fire(t)
	backend.fire(t)

	events := TraceEvents()
	want := []uint8{TraceArm, TraceOverflow, TraceArm, TraceFire}
	if len(events) != len(want) {
		t.Fatalf("captured %d events, want %d", len(events), len(want))
	}
	for i, code := range want {
		if events[i].Code != code {
			t.Errorf("event %d code = %d, want %d", i, events[i].Code, code)
		}
	}
	if events[0].N != 256 {
		t.Errorf("first arm leg = %d ticks, want 256", events[0].N)
	}
	if events[2].N != 44 {
		t.Errorf("remainder arm leg = %d ticks, want 44", events[2].N)
	}
}

func TestTraceRingWraps(t *testing.T) {
	ClearTrace()
	for i := 0; i < TraceRingSize+5; i++ {
		traceRecord(TraceArm, ModeTimeout, uint32(i))
	}

	events := TraceEvents()
	if len(events) != TraceRingSize {
		t.Fatalf("captured %d events, want %d", len(events), TraceRingSize)
	}
	if events[0].N != 5 {
		t.Errorf("oldest event n = %d, want 5", events[0].N)
	}
	if last := events[len(events)-1].N; last != TraceRingSize+4 {
		t.Errorf("newest event n = %d, want %d", last, TraceRingSize+4)
	}
}

func TestDumpTraceWritesEvents(t *testing.T) {
	ClearTrace()
	traceRecord(TraceFire, ModeInterval, 0)

	var lines []string
	DumpTrace(func(s string) { lines = append(lines, s) })

	if len(lines) != 3 {
		t.Fatalf("dump wrote %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[1], "FIRE") || !strings.Contains(lines[1], "mode=interval") {
		t.Errorf("dump line = %q, want FIRE with mode=interval", lines[1])
	}
}

func TestSetTraceEnabled(t *testing.T) {
	ClearTrace()
	SetTraceEnabled(false)
	traceRecord(TraceArm, ModeOff, 1)
	SetTraceEnabled(true)

	if got := len(TraceEvents()); got != 0 {
		t.Errorf("captured %d events while disabled, want 0", got)
	}
}
