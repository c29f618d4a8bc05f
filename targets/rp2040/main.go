//go:build rp2040

// Timer accuracy harness for the RP2040.
//
// The firmware drives one timer controller from the hardware alarm and
// reports every callback over USB CDC with the 64-bit microsecond clock
// sampled inside the expiry interrupt. The host starts and stops
// schedules over the framed serial protocol and measures callback
// accuracy from the reports. Each callback also queues a marker pulse on
// a GPIO pin so the expiry edge can be cross-checked on a scope.
package main

import (
	"machine"
	"runtime/interrupt"
	"time"

	"utimer/core"
	"utimer/protocol"
	"utimer/targets/pio"
	"utimer/targets/rp2040timer"
)

const (
	markerPin         = machine.GPIO15
	markerWidthMicros = 100
)

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	decoder      *protocol.Decoder

	ctrl   *core.Controller
	marker *pio.MarkerPulse

	// Debug counters
	framesReceived uint32
	reportsSent    uint32
	cmdErrors      uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

// Callback state shared with the expiry interrupt. The interrupt pushes
// reports into a fixed ring; the main loop drains it with the interrupt
// masked and does the encoding and USB writes itself.
const reportRingSize = 16

var (
	seq         uint64
	reportRing  [reportRingSize]protocol.Report
	reportHead  int
	reportCount int
	reportsLost uint32
)

func main() {
	// Disable the watchdog on boot to clear any state a previous reset
	// left behind
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	backend := rp2040timer.New()
	core.SetTimerBackend(backend)

	ctrl, err = core.NewController(core.MustTimerBackend(), rp2040timer.TimerResolution())
	if err != nil {
		return
	}

	// Scope marker, one pulse per callback. The harness still runs when
	// no PIO state machine is free.
	marker, _ = pio.NewMarkerPulse(markerPin)

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()
	decoder = protocol.NewDecoder(handleFrame)

	sendBoot()

	// Start USB reader goroutine
	go usbReaderLoop()

	for {
		// Recover from panics in the main loop to keep the firmware up
		func() {
			defer func() {
				if r := recover(); r != nil {
					cmdErrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			// Process incoming command frames
			if inputBuffer.Available() > 0 {
				decoder.Feed(inputBuffer)
			}

			// Drain callback reports into the output buffer
			drainReports()

			// Write outgoing USB data
			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// onFire runs inside the alarm expiry interrupt once per completed
// schedule. It must stay short: sample the clock, queue the report,
// kick the marker pulse.
func onFire() {
	seq++
	if reportCount == reportRingSize {
		reportsLost++
	} else {
		reportRing[(reportHead+reportCount)%reportRingSize] = protocol.Report{
			Seq:    seq,
			Micros: rp2040timer.ReadMicros(),
		}
		reportCount++
	}
	if marker != nil {
		marker.Trigger(markerWidthMicros)
	}
}

// drainReports moves queued reports out of the interrupt ring and
// encodes them. Only the ring handoff runs with the interrupt masked.
func drainReports() {
	for {
		state := interrupt.Disable()
		if reportCount == 0 {
			interrupt.Restore(state)
			return
		}
		r := reportRing[reportHead]
		reportHead = (reportHead + 1) % reportRingSize
		reportCount--
		interrupt.Restore(state)

		protocol.EncodeReport(outputBuffer, r)
		reportsSent++
	}
}

// resetSequence restarts callback numbering for a new schedule
func resetSequence() {
	state := interrupt.Disable()
	seq = 0
	reportHead = 0
	reportCount = 0
	interrupt.Restore(state)
}

// handleFrame dispatches one decoded command frame
func handleFrame(msgType uint8, payload []byte) {
	framesReceived++

	switch msgType {
	case protocol.MsgStartTimeout, protocol.MsgStartInterval:
		us, err := protocol.DecodeDuration(payload)
		if err != nil {
			cmdErrors++
			return
		}
		ctrl.ClearTimer()
		resetSequence()
		if msgType == protocol.MsgStartTimeout {
			err = ctrl.SetTimeoutMicros(us, onFire)
		} else {
			err = ctrl.SetIntervalMicros(us, onFire)
		}
		if err != nil {
			cmdErrors++
		}
		// The status reply doubles as the command ack; on a rejected
		// duration it shows the schedule unchanged
		sendStatus()

	case protocol.MsgStop:
		ctrl.ClearTimer()
		sendStatus()

	case protocol.MsgQueryStatus:
		// Replay the timebase announcement for hosts that attached
		// after boot, then the schedule status
		sendBoot()
		sendStatus()

	default:
		cmdErrors++
	}
}

// sendBoot announces the timebase so the host can plan expectations
func sendBoot() {
	res := ctrl.Resolution()
	protocol.EncodeBoot(outputBuffer, protocol.Boot{
		TickNum:     res.TickNum,
		TickDen:     res.TickDen,
		PeriodTicks: res.PeriodTicks,
	})
	writeUSB()
}

func sendStatus() {
	s := ctrl.Status()
	protocol.EncodeStatus(outputBuffer, protocol.Status{
		Mode:           uint8(s.Mode),
		Overflows:      s.Plan.Overflows,
		Remainder:      s.Plan.Remainder,
		OverflowsLeft:  s.OverflowsLeft,
		RemainderArmed: s.RemainderArmed,
	})
	writeUSB()
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	// Recover from panics to keep the reader alive
	defer func() {
		if r := recover(); r != nil {
			cmdErrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				cmdErrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// First bytes after a disconnect: reset for the new session
			// and re-announce the timebase
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				consecutiveWriteFailures = 0
				sendBoot()
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				// Buffer full
				cmdErrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB writes available data from the output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// No progress, likely a disconnect
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				// Drop stale data rather than keep pushing it
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}

	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
