// Package protocol implements the framed telemetry link between the timer
// firmware and the host capture tool.
//
// Wire format, identical in both directions:
//
//	[len][type][payload...][crc hi][crc lo][sync]
//
// len counts the whole frame including the trailer. The CRC covers len,
// type and payload. Payload integers are unsigned varints with the most
// significant 7-bit group first. A receiver that loses framing discards
// bytes until the next sync marker before trusting length fields again.
package protocol

// Version is the firmware protocol revision
const Version = "0.1.0"

// Frame layout constants
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameMin         = FrameHeaderSize + FrameTrailerSize
	FrameMax         = 64
	FrameSync        = 0x7E

	framePosLen  = 0
	framePosType = 1

	// OutputMax sizes the scratch output buffer; several frames can queue
	// up between flushes
	OutputMax = 256
)
