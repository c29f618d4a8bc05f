package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 0x7F, 0x80, 0xFF, 0x3FFF, 0x4000,
		1000000, 1 << 32, math.MaxUint32, math.MaxUint64,
	}
	for _, v := range values {
		out := NewScratchOutput()
		EncodeUvarint(out, v)

		data := out.Result()
		got, err := DecodeUvarint(&data)
		if err != nil {
			t.Fatalf("DecodeUvarint(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip of %d = %d", v, got)
		}
		if len(data) != 0 {
			t.Errorf("decode of %d left %d bytes", v, len(data))
		}
	}
}

func TestUvarintEncodedLength(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{0x7F, 1},
		{0x80, 2},
		{0x3FFF, 2},
		{0x4000, 3},
		{math.MaxUint64, 10},
	}
	for _, tc := range cases {
		out := NewScratchOutput()
		EncodeUvarint(out, tc.v)
		if got := len(out.Result()); got != tc.want {
			t.Errorf("encoded length of %#x = %d, want %d", tc.v, got, tc.want)
		}
		if got := UvarintLen(tc.v); got != tc.want {
			t.Errorf("UvarintLen(%#x) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestUvarintMostSignificantFirst(t *testing.T) {
	out := NewScratchOutput()
	EncodeUvarint(out, 0x81)

	// 0x81 = 0b1_0000001: high group first with continuation bit
	want := []byte{0x81, 0x01}
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("EncodeUvarint(0x81) = %v, want %v", out.Result(), want)
	}
}

func TestUvarintTruncated(t *testing.T) {
	data := []byte{0x81} // continuation bit with nothing after it
	if _, err := DecodeUvarint(&data); !errors.Is(err, ErrTruncated) {
		t.Errorf("DecodeUvarint(truncated) error = %v, want ErrTruncated", err)
	}

	var empty []byte
	if _, err := DecodeUvarint(&empty); !errors.Is(err, ErrTruncated) {
		t.Errorf("DecodeUvarint(empty) error = %v, want ErrTruncated", err)
	}
}

func TestUvarintTooLong(t *testing.T) {
	data := bytes.Repeat([]byte{0x80}, 11)
	if _, err := DecodeUvarint(&data); !errors.Is(err, ErrUvarintRange) {
		t.Errorf("DecodeUvarint(11 groups) error = %v, want ErrUvarintRange", err)
	}
}

func TestUvarintAdvancesSlice(t *testing.T) {
	out := NewScratchOutput()
	EncodeUvarint(out, 300)
	EncodeUvarint(out, 7)

	data := out.Result()
	first, err := DecodeUvarint(&data)
	if err != nil || first != 300 {
		t.Fatalf("first value = %d, %v; want 300", first, err)
	}
	second, err := DecodeUvarint(&data)
	if err != nil || second != 7 {
		t.Fatalf("second value = %d, %v; want 7", second, err)
	}
}
