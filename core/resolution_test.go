package core

import (
	"errors"
	"math"
	"testing"
)

func TestTicksFromMicrosRoundsHalfUp(t *testing.T) {
	// 64us tick (16MHz with /1024 prescale)
	res := NanosPerTick(64000, 1, 256)

	cases := []struct {
		us   uint64
		want uint64
	}{
		{64, 1},
		{95, 1},      // 1.48 ticks rounds down
		{96, 2},      // exactly 1.5 ticks rounds up
		{100, 2},     // 1.56 ticks
		{128, 2},     // exact
		{1000000, 15625}, // one second
	}
	for _, tc := range cases {
		got, err := res.TicksFromMicros(tc.us)
		if err != nil {
			t.Fatalf("TicksFromMicros(%d) returned error: %v", tc.us, err)
		}
		if got != tc.want {
			t.Errorf("TicksFromMicros(%d) = %d, want %d", tc.us, got, tc.want)
		}
	}
}

func TestTicksFromMicrosFractionalTick(t *testing.T) {
	// 3MHz tick (1000/3 ns) does not divide evenly into nanoseconds
	res := NanosPerTick(1000, 3, 65536)

	cases := []struct {
		us   uint64
		want uint64
	}{
		{1, 3},
		{7, 21},
		{100, 300},
		{333334, 1000002},
	}
	for _, tc := range cases {
		got, err := res.TicksFromMicros(tc.us)
		if err != nil {
			t.Fatalf("TicksFromMicros(%d) returned error: %v", tc.us, err)
		}
		if got != tc.want {
			t.Errorf("TicksFromMicros(%d) = %d, want %d", tc.us, got, tc.want)
		}
	}
}

func TestTicksFromMicrosHalfTickRoundsUp(t *testing.T) {
	// 2us tick: 5us is exactly 2.5 ticks
	res := MicrosPerTick(2, 256)
	got, err := res.TicksFromMicros(5)
	if err != nil {
		t.Fatalf("TicksFromMicros(5) returned error: %v", err)
	}
	if got != 3 {
		t.Errorf("TicksFromMicros(5) = %d, want 3", got)
	}
}

func TestTicksFromSeconds(t *testing.T) {
	res := NanosPerTick(64000, 1, 256)
	got, err := res.TicksFromSeconds(2)
	if err != nil {
		t.Fatalf("TicksFromSeconds(2) returned error: %v", err)
	}
	if got != 31250 {
		t.Errorf("TicksFromSeconds(2) = %d, want 31250", got)
	}

	res = NanosPerTick(1000, 3, 65536)
	got, err = res.TicksFromSeconds(2)
	if err != nil {
		t.Fatalf("TicksFromSeconds(2) returned error: %v", err)
	}
	if got != 6000000 {
		t.Errorf("TicksFromSeconds(2) = %d, want 6000000", got)
	}
}

func TestTicksFromMicrosOverflow(t *testing.T) {
	res := MicrosPerTick(1, 65536)
	_, err := res.TicksFromMicros(math.MaxUint64)
	if !errors.Is(err, ErrDurationTooLong) {
		t.Errorf("TicksFromMicros(MaxUint64) error = %v, want ErrDurationTooLong", err)
	}
}

func TestMicrosFromTicks(t *testing.T) {
	res := NanosPerTick(1000, 3, 65536)

	cases := []struct {
		ticks uint64
		want  uint64
	}{
		{3, 1},
		{4, 1}, // 1333ns rounds down
		{5, 2}, // 1667ns rounds up
		{3000000, 1000000},
	}
	for _, tc := range cases {
		if got := res.MicrosFromTicks(tc.ticks); got != tc.want {
			t.Errorf("MicrosFromTicks(%d) = %d, want %d", tc.ticks, got, tc.want)
		}
	}
}

func TestResolutionValidate(t *testing.T) {
	cases := []struct {
		name string
		res  Resolution
		ok   bool
	}{
		{"valid", NanosPerTick(1000, 1, 65536), true},
		{"fractional", NanosPerTick(1000, 3, 256), true},
		{"zero num", NanosPerTick(0, 1, 256), false},
		{"zero den", NanosPerTick(1000, 0, 256), false},
		{"zero period", NanosPerTick(1000, 1, 0), false},
		{"period of one", NanosPerTick(1000, 1, 1), false},
	}
	for _, tc := range cases {
		err := tc.res.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: Validate() = %v, want nil", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidResolution) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidResolution", tc.name, err)
		}
	}
}

func TestResolutionString(t *testing.T) {
	res := NanosPerTick(1000, 3, 65536)
	want := "1000/3 ns x 65536"
	if got := res.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
