// Package capture drives timer schedules on the firmware and records
// the callback reports for accuracy analysis.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"utimer/protocol"
)

// Record is one observed callback: the firmware report plus the host
// receive time. The firmware clock is authoritative for intervals; the
// host time only anchors the session to wall time.
type Record struct {
	Seq      uint64    `cbor:"1,keyasint"`
	Micros   uint64    `cbor:"2,keyasint"`
	HostTime time.Time `cbor:"3,keyasint"`
}

// Header describes one capture session.
type Header struct {
	SessionID     string    `cbor:"1,keyasint"`
	Device        string    `cbor:"2,keyasint"`
	StartedAt     time.Time `cbor:"3,keyasint"`
	TickNum       uint64    `cbor:"4,keyasint"`
	TickDen       uint64    `cbor:"5,keyasint"`
	PeriodTicks   uint32    `cbor:"6,keyasint"`
	Schedule      string    `cbor:"7,keyasint"` // "timeout" or "interval"
	NominalMicros uint64    `cbor:"8,keyasint"`
}

// NewHeader stamps a fresh session with the firmware's announced timebase
func NewHeader(device, schedule string, nominalMicros uint64, boot protocol.Boot) Header {
	return Header{
		SessionID:     uuid.New().String(),
		Device:        device,
		StartedAt:     time.Now(),
		TickNum:       boot.TickNum,
		TickDen:       boot.TickDen,
		PeriodTicks:   boot.PeriodTicks,
		Schedule:      schedule,
		NominalMicros: nominalMicros,
	}
}

// sessionEncMode is the CBOR encoder mode for session files.
// Configured for nanosecond-precision timestamps and deterministic encoding.
var sessionEncMode cbor.EncMode

// sessionDecMode is the CBOR decoder mode for session files.
var sessionDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	sessionEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create session CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	sessionDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create session CBOR decoder mode: %v", err))
	}
}

// Writer writes one session to a file: the header first, then every
// record in arrival order. It is safe for concurrent use.
type Writer struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewWriter creates the session file and writes its header. An existing
// file at path is truncated.
func NewWriter(path string, hdr Header) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		file:    f,
		encoder: sessionEncMode.NewEncoder(f),
	}
	if err := w.encoder.Encode(hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("write session header: %w", err)
	}
	return w, nil
}

// Append writes one record to the session file
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	return w.encoder.Encode(rec)
}

// Close closes the session file. It is safe to call Close multiple times.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Reader streams one session back from disk.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	header  Header
}

// OpenSession opens a session file and reads its header
func OpenSession(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		file:    f,
		decoder: sessionDecMode.NewDecoder(f),
	}
	if err := r.decoder.Decode(&r.header); err != nil {
		f.Close()
		return nil, fmt.Errorf("read session header: %w", err)
	}
	return r, nil
}

// Header returns the session header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record. Returns io.EOF when none remain.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.decoder.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, err
	}
	return rec, nil
}

// Close closes the underlying file
func (r *Reader) Close() error {
	return r.file.Close()
}
