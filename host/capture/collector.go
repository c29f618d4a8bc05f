package capture

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"utimer/protocol"
)

// Collector owns the host side of the serial link. A background goroutine
// reads the port into a FIFO, the frame decoder splits the stream, and
// decoded messages are routed to typed channels by kind. Commands are
// written synchronously; replies and reports are consumed through the
// Wait methods.
type Collector struct {
	port   io.ReadWriteCloser
	logger *zap.Logger

	inputBuffer *protocol.FifoBuffer
	decoder     *protocol.Decoder

	bootChan   chan protocol.Boot
	statusChan chan protocol.Status
	reportChan chan Record

	decodeErrors uint32 // atomic
	overflows    uint32 // atomic, reports dropped on a full channel

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCollector starts the background reader on port. Close stops it and
// closes the port.
func NewCollector(port io.ReadWriteCloser, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		port:        port,
		logger:      logger,
		inputBuffer: protocol.NewFifoBuffer(512),
		bootChan:    make(chan protocol.Boot, 1),
		statusChan:  make(chan protocol.Status, 1),
		reportChan:  make(chan Record, 64),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	c.decoder = protocol.NewDecoder(c.handleFrame)

	go c.readLoop()

	return c
}

// StartTimeout asks the firmware to schedule a one-shot callback
func (c *Collector) StartTimeout(micros uint64) error {
	return c.send(func(out protocol.OutputBuffer) {
		protocol.EncodeStart(out, protocol.MsgStartTimeout, micros)
	})
}

// StartInterval asks the firmware to schedule a repeating callback
func (c *Collector) StartInterval(micros uint64) error {
	return c.send(func(out protocol.OutputBuffer) {
		protocol.EncodeStart(out, protocol.MsgStartInterval, micros)
	})
}

// Stop cancels the live schedule
func (c *Collector) Stop() error {
	return c.send(func(out protocol.OutputBuffer) {
		protocol.EncodeEmpty(out, protocol.MsgStop)
	})
}

// QueryStatus asks for the timebase announcement and schedule status
func (c *Collector) QueryStatus() error {
	return c.send(func(out protocol.OutputBuffer) {
		protocol.EncodeEmpty(out, protocol.MsgQueryStatus)
	})
}

// Identify queries the firmware and waits for the full reply pair, the
// timebase announcement followed by the schedule status. Consuming both
// keeps a stale status from shadowing the ack of a later command.
func (c *Collector) Identify(timeout time.Duration) (protocol.Boot, protocol.Status, error) {
	if err := c.QueryStatus(); err != nil {
		return protocol.Boot{}, protocol.Status{}, err
	}
	b, err := c.WaitBoot(timeout)
	if err != nil {
		return protocol.Boot{}, protocol.Status{}, err
	}
	s, err := c.WaitStatus(timeout)
	if err != nil {
		return b, protocol.Status{}, err
	}
	return b, s, nil
}

// WaitBoot waits for a timebase announcement
func (c *Collector) WaitBoot(timeout time.Duration) (protocol.Boot, error) {
	select {
	case b := <-c.bootChan:
		return b, nil
	case <-time.After(timeout):
		return protocol.Boot{}, fmt.Errorf("no boot frame after %v", timeout)
	case <-c.stopChan:
		return protocol.Boot{}, fmt.Errorf("collector stopped")
	}
}

// WaitStatus waits for a status reply
func (c *Collector) WaitStatus(timeout time.Duration) (protocol.Status, error) {
	select {
	case s := <-c.statusChan:
		return s, nil
	case <-time.After(timeout):
		return protocol.Status{}, fmt.Errorf("no status reply after %v", timeout)
	case <-c.stopChan:
		return protocol.Status{}, fmt.Errorf("collector stopped")
	}
}

// NextReport waits for the next callback report
func (c *Collector) NextReport(timeout time.Duration) (Record, error) {
	select {
	case r := <-c.reportChan:
		return r, nil
	case <-time.After(timeout):
		return Record{}, fmt.Errorf("no report after %v", timeout)
	case <-c.stopChan:
		return Record{}, fmt.Errorf("collector stopped")
	}
}

// DecodeErrors returns how many frames failed to parse
func (c *Collector) DecodeErrors() uint32 {
	return atomic.LoadUint32(&c.decodeErrors)
}

// Close stops the reader and closes the port. Close must be called once.
func (c *Collector) Close() error {
	close(c.stopChan)
	// Closing the port unblocks a pending Read
	err := c.port.Close()
	<-c.doneChan
	return err
}

// send encodes one frame and writes it to the port
func (c *Collector) send(encode func(out protocol.OutputBuffer)) error {
	out := protocol.NewScratchOutput()
	encode(out)
	data := out.Result()

	n, err := c.port.Write(data)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(data))
	}
	return nil
}

// readLoop continuously reads from the port and feeds the decoder
func (c *Collector) readLoop() {
	defer close(c.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		n, err := c.port.Read(buffer)
		if err != nil {
			if err == io.EOF {
				return
			}
			// Timeout-less ports surface a close as an error; back off
			// and let the stop check decide
			select {
			case <-c.stopChan:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		if n > 0 {
			if c.inputBuffer.Write(buffer[:n]) < n {
				c.logger.Warn("input buffer overflow, dropping bytes")
			}
			c.decoder.Feed(c.inputBuffer)
		}
	}
}

// handleFrame routes one decoded frame to its channel. Channels hold the
// latest boot and status; reports drop oldest-first when the consumer
// falls behind.
func (c *Collector) handleFrame(msgType uint8, payload []byte) {
	switch msgType {
	case protocol.MsgBoot:
		b, err := protocol.DecodeBoot(payload)
		if err != nil {
			c.noteDecodeError(msgType, err)
			return
		}
		replaceLatest(c.bootChan, b)

	case protocol.MsgStatus:
		s, err := protocol.DecodeStatus(payload)
		if err != nil {
			c.noteDecodeError(msgType, err)
			return
		}
		replaceLatest(c.statusChan, s)

	case protocol.MsgReport:
		r, err := protocol.DecodeReport(payload)
		if err != nil {
			c.noteDecodeError(msgType, err)
			return
		}
		rec := Record{Seq: r.Seq, Micros: r.Micros, HostTime: time.Now()}
		select {
		case c.reportChan <- rec:
		default:
			atomic.AddUint32(&c.overflows, 1)
			select {
			case <-c.reportChan:
			default:
			}
			c.reportChan <- rec
		}

	default:
		c.noteDecodeError(msgType, fmt.Errorf("unknown message type"))
	}
}

func (c *Collector) noteDecodeError(msgType uint8, err error) {
	atomic.AddUint32(&c.decodeErrors, 1)
	c.logger.Warn("undecodable frame",
		zap.Uint8("msg_type", msgType),
		zap.Error(err))
}

// replaceLatest keeps only the newest value in a capacity-1 channel
func replaceLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
