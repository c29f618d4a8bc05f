//go:build rp2040

// Package pio generates marker pulses on a GPIO pin from a PIO state
// machine. A pulse is queued per timer callback so the expiry edge can
// be checked on a scope without USB latency in the measurement.
package pio

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// ErrNoStateMachine is returned when every PIO0 state machine is claimed
var ErrNoStateMachine = errors.New("no free PIO state machine")

// PIO program for one fixed-width pulse per FIFO word.
// The word is the high time in PIO cycles; the clock divider below runs
// the state machine at 1MHz so the width is in microseconds.
//
// Program flow:
//  1. Pull a 32-bit width from the FIFO
//  2. Load it into Y
//  3. Drive the pin high for Y+1 cycles
//  4. Drive the pin low and wrap to the next pull
func buildPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),        // 0: pull block
		asm.Out(rp2pio.OutDestY, 32).Encode(), // 1: out y, 32 (width)
		asm.Set(rp2pio.SetDestPins, 1).Encode(), // 2: set pins, 1
		// high_loop:
		asm.Jmp(3, rp2pio.JmpYNZeroDec).Encode(), // 3: jmp y--, 3
		asm.Set(rp2pio.SetDestPins, 0).Encode(),  // 4: set pins, 0
		// .wrap
	}
}

const pulsePIOOrigin = 0 // Load at offset 0 for correct jump addresses

// MarkerPulse drives a single pin from a claimed PIO0 state machine
type MarkerPulse struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
}

// NewMarkerPulse claims a PIO0 state machine, loads the pulse program
// and leaves the pin configured as a low output.
func NewMarkerPulse(pin machine.Pin) (*MarkerPulse, error) {
	p := rp2pio.PIO0

	var sm rp2pio.StateMachine
	claimed := false
	for i := uint8(0); i < 4; i++ {
		sm = p.StateMachine(i)
		if sm.TryClaim() {
			claimed = true
			break
		}
	}
	if !claimed {
		return nil, ErrNoStateMachine
	}

	m := &MarkerPulse{pio: p, sm: sm, pin: pin}

	program := buildPulseProgram()
	offset, err := p.AddProgram(program, pulsePIOOrigin)
	if err != nil {
		return nil, err
	}
	m.offset = offset

	pin.Configure(machine.PinConfig{Mode: p.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)

	// Shift right, autopull disabled (the program pulls explicitly)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// 125MHz / 125 = 1MHz, one PIO cycle per microsecond
	cfg.SetClkDivIntFrac(125, 0)

	m.sm.Init(offset, cfg)

	// Pin direction must be set after Init
	m.sm.SetPindirsConsecutive(pin, 1, true)
	m.sm.SetPinsConsecutive(pin, 1, false)

	m.sm.SetEnabled(true)
	return m, nil
}

// Trigger queues one pulse of roughly widthMicros microseconds. Called
// from the timer expiry interrupt; when the FIFO is full the pulse is
// dropped rather than waited for.
func (m *MarkerPulse) Trigger(widthMicros uint32) {
	if m.sm.IsTxFIFOFull() {
		return
	}
	m.sm.TxPut(widthMicros)
}

// Reset aborts a pulse in progress and clears queued widths
func (m *MarkerPulse) Reset() {
	m.sm.SetEnabled(false)
	m.sm.ClearFIFOs()
	m.sm.Restart()
	m.sm.SetEnabled(true)
}
