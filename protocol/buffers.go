package protocol

// InputBuffer provides an abstraction for reading incoming protocol data
type InputBuffer interface {
	// Data returns the available data slice
	Data() []byte

	// Available returns the number of bytes available
	Available() int

	// Pop removes n bytes from the front of the buffer
	Pop(n int)
}

// OutputBuffer provides an abstraction for writing outgoing protocol data.
// CurPosition, Update and DataSince exist so the frame encoder can patch
// the length byte and checksum a frame after its payload is written.
type OutputBuffer interface {
	// Output appends data to the buffer
	Output(data []byte)

	// CurPosition returns the current write position
	CurPosition() int

	// Update modifies one already-written byte
	Update(pos int, val byte)

	// DataSince returns the bytes written from pos to the current position
	DataSince(pos int) []byte
}

// SliceInputBuffer adapts a byte slice to InputBuffer
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer wraps data without copying it
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput implements OutputBuffer over a fixed array, sized so a
// burst of frames fits between flushes. Writes past the end are dropped;
// frames are far smaller than the buffer.
type ScratchOutput struct {
	buf [OutputMax]byte
	pos int
}

// NewScratchOutput creates an empty ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written so far
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset discards the buffer contents
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a byte ring for serial I/O, written from the receive path
// and drained by the frame decoder.
type FifoBuffer struct {
	buf   []byte
	head  int // index of the oldest byte
	count int // bytes stored
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends data, returning how many bytes fit
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		if f.count == len(f.buf) {
			break
		}
		f.buf[(f.head+f.count)%len(f.buf)] = b
		f.count++
		written++
	}
	return written
}

// Read copies up to len(data) bytes out of the ring
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.count == 0 {
			break
		}
		data[i] = f.buf[f.head]
		f.head = (f.head + 1) % len(f.buf)
		f.count--
		read++
	}
	return read
}

// Available returns the number of stored bytes
func (f *FifoBuffer) Available() int {
	return f.count
}

// Free returns the remaining capacity
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.count
}

// Data returns the stored bytes as one contiguous slice. A wrapped ring
// is copied; frame parsing needs contiguous input.
func (f *FifoBuffer) Data() []byte {
	if f.head+f.count <= len(f.buf) {
		return f.buf[f.head : f.head+f.count]
	}
	result := make([]byte, f.count)
	firstLen := len(f.buf) - f.head
	copy(result, f.buf[f.head:])
	copy(result[firstLen:], f.buf[:f.count-firstLen])
	return result
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if n > f.count {
		n = f.count
	}
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
}

// IsEmpty returns true when nothing is stored
func (f *FifoBuffer) IsEmpty() bool {
	return f.count == 0
}

// Reset discards all stored bytes
func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
