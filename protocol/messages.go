package protocol

import "errors"

// ErrBadMessage is returned when a payload does not parse as its type.
var ErrBadMessage = errors.New("malformed message payload")

// Message type codes. Commands travel host to firmware, telemetry
// firmware to host.
const (
	MsgStartTimeout  uint8 = 0x01 // payload: duration in microseconds
	MsgStartInterval uint8 = 0x02 // payload: duration in microseconds
	MsgStop          uint8 = 0x03 // no payload
	MsgQueryStatus   uint8 = 0x04 // no payload; answered with boot + status

	MsgBoot   uint8 = 0x10 // payload: tick num, tick den, period ticks
	MsgReport uint8 = 0x11 // payload: callback seq, clock micros
	MsgStatus uint8 = 0x12 // payload: mode, plan, progress
)

// Boot announces the firmware timebase after reset.
type Boot struct {
	TickNum     uint64
	TickDen     uint64
	PeriodTicks uint32
}

// EncodeBoot appends a boot frame to out.
func EncodeBoot(out OutputBuffer, b Boot) {
	EncodeFrame(out, MsgBoot, func(out OutputBuffer) {
		EncodeUvarint(out, b.TickNum)
		EncodeUvarint(out, b.TickDen)
		EncodeUvarint(out, uint64(b.PeriodTicks))
	})
}

// DecodeBoot parses a boot payload.
func DecodeBoot(payload []byte) (Boot, error) {
	var b Boot
	num, err := DecodeUvarint(&payload)
	if err != nil {
		return Boot{}, ErrBadMessage
	}
	den, err := DecodeUvarint(&payload)
	if err != nil {
		return Boot{}, ErrBadMessage
	}
	period, err := DecodeUvarint(&payload)
	if err != nil {
		return Boot{}, ErrBadMessage
	}
	b.TickNum = num
	b.TickDen = den
	b.PeriodTicks = uint32(period)
	return b, nil
}

// Report is one observed timer callback.
type Report struct {
	Seq    uint64 // callback ordinal since the schedule started
	Micros uint64 // firmware clock at the callback, microseconds
}

// EncodeReport appends a report frame to out.
func EncodeReport(out OutputBuffer, r Report) {
	EncodeFrame(out, MsgReport, func(out OutputBuffer) {
		EncodeUvarint(out, r.Seq)
		EncodeUvarint(out, r.Micros)
	})
}

// DecodeReport parses a report payload.
func DecodeReport(payload []byte) (Report, error) {
	seq, err := DecodeUvarint(&payload)
	if err != nil {
		return Report{}, ErrBadMessage
	}
	micros, err := DecodeUvarint(&payload)
	if err != nil {
		return Report{}, ErrBadMessage
	}
	return Report{Seq: seq, Micros: micros}, nil
}

// Status mirrors the controller snapshot for the host.
type Status struct {
	Mode           uint8
	Overflows      uint32
	Remainder      uint32
	OverflowsLeft  uint32
	RemainderArmed bool
}

// EncodeStatus appends a status frame to out.
func EncodeStatus(out OutputBuffer, s Status) {
	EncodeFrame(out, MsgStatus, func(out OutputBuffer) {
		EncodeUvarint(out, uint64(s.Mode))
		EncodeUvarint(out, uint64(s.Overflows))
		EncodeUvarint(out, uint64(s.Remainder))
		EncodeUvarint(out, uint64(s.OverflowsLeft))
		armed := uint64(0)
		if s.RemainderArmed {
			armed = 1
		}
		EncodeUvarint(out, armed)
	})
}

// DecodeStatus parses a status payload.
func DecodeStatus(payload []byte) (Status, error) {
	var fields [5]uint64
	for i := range fields {
		v, err := DecodeUvarint(&payload)
		if err != nil {
			return Status{}, ErrBadMessage
		}
		fields[i] = v
	}
	return Status{
		Mode:           uint8(fields[0]),
		Overflows:      uint32(fields[1]),
		Remainder:      uint32(fields[2]),
		OverflowsLeft:  uint32(fields[3]),
		RemainderArmed: fields[4] != 0,
	}, nil
}

// EncodeStart appends a timeout or interval command frame carrying the
// duration in microseconds. msgType is MsgStartTimeout or MsgStartInterval.
func EncodeStart(out OutputBuffer, msgType uint8, micros uint64) {
	EncodeFrame(out, msgType, func(out OutputBuffer) {
		EncodeUvarint(out, micros)
	})
}

// DecodeDuration parses a start command payload.
func DecodeDuration(payload []byte) (uint64, error) {
	micros, err := DecodeUvarint(&payload)
	if err != nil {
		return 0, ErrBadMessage
	}
	return micros, nil
}

// EncodeEmpty appends a frame with no payload, for MsgStop and
// MsgQueryStatus.
func EncodeEmpty(out OutputBuffer, msgType uint8) {
	EncodeFrame(out, msgType, nil)
}
