package protocol

import "errors"

// Uvarint codec errors.
var (
	ErrTruncated    = errors.New("truncated uvarint")
	ErrUvarintRange = errors.New("uvarint exceeds 64 bits")
)

// maxUvarintLen is the byte length of the largest encodable value
const maxUvarintLen = 10

// EncodeUvarint writes v to out in 7-bit groups, most significant group
// first, with the continuation bit set on all but the final byte.
func EncodeUvarint(out OutputBuffer, v uint64) {
	var buf [maxUvarintLen]byte
	pos := len(buf) - 1
	buf[pos] = byte(v & 0x7F)
	v >>= 7
	for v != 0 {
		pos--
		buf[pos] = byte(v&0x7F) | 0x80
		v >>= 7
	}
	out.Output(buf[pos:])
}

// DecodeUvarint reads one value from the front of data, advancing the
// slice past the consumed bytes.
func DecodeUvarint(data *[]byte) (uint64, error) {
	var v uint64
	for i := 0; ; i++ {
		if i == maxUvarintLen {
			return 0, ErrUvarintRange
		}
		if len(*data) == 0 {
			return 0, ErrTruncated
		}
		c := (*data)[0]
		*data = (*data)[1:]
		v = v<<7 | uint64(c&0x7F)
		if c&0x80 == 0 {
			return v, nil
		}
	}
}

// UvarintLen returns the encoded size of v in bytes
func UvarintLen(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}
