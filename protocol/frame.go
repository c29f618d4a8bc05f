package protocol

// FrameHandler consumes one decoded frame. The payload slice aliases the
// decoder's input and is only valid for the duration of the call.
type FrameHandler func(msgType uint8, payload []byte)

// EncodeFrame appends one framed message to out. fields writes the
// payload and may be nil for messages without one.
func EncodeFrame(out OutputBuffer, msgType uint8, fields func(out OutputBuffer)) {
	start := out.CurPosition()
	out.Output([]byte{0, msgType})
	if fields != nil {
		fields(out)
	}

	// Patch the length byte now that the payload size is known
	total := len(out.DataSince(start)) + FrameTrailerSize
	out.Update(start, uint8(total))

	crc := CRC16(out.DataSince(start))
	out.Output([]byte{uint8(crc >> 8), uint8(crc & 0xFF), FrameSync})
}

// Decoder extracts frames from a byte stream. After corrupted input it
// discards bytes until the next sync marker before trusting a length
// field again.
type Decoder struct {
	synced  bool
	handler FrameHandler
	desyncs uint32
}

// NewDecoder creates a Decoder in the synced state
func NewDecoder(handler FrameHandler) *Decoder {
	return &Decoder{synced: true, handler: handler}
}

// Desyncs returns how many times the decoder lost framing
func (d *Decoder) Desyncs() uint32 {
	return d.desyncs
}

func (d *Decoder) desync() {
	if d.synced {
		d.synced = false
		d.desyncs++
	}
}

// Feed consumes buffered bytes, dispatching every complete frame.
// Incomplete trailing data is left in the buffer for the next call.
func (d *Decoder) Feed(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synced {
			// Hunt for a sync marker and resume after it
			syncPos := -1
			for i, b := range data {
				if b == FrameSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synced = true
			continue
		}

		// Skip stray sync markers between frames
		if data[0] == FrameSync {
			data = data[1:]
			continue
		}

		if len(data) < FrameMin {
			break
		}
		frameLen := int(data[framePosLen])
		if frameLen < FrameMin || frameLen > FrameMax {
			d.desync()
			continue
		}
		if len(data) < frameLen {
			break // wait for the rest of the frame
		}
		if data[frameLen-1] != FrameSync {
			d.desync()
			continue
		}
		wantCRC := uint16(data[frameLen-3])<<8 | uint16(data[frameLen-2])
		if CRC16(data[:frameLen-FrameTrailerSize]) != wantCRC {
			d.desync()
			continue
		}

		msgType := data[framePosType]
		payload := data[FrameHeaderSize : frameLen-FrameTrailerSize]
		data = data[frameLen:]

		if d.handler != nil {
			d.handler(msgType, payload)
		}
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}
