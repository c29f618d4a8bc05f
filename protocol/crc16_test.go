package protocol

import "testing"

func TestCRC16CheckValue(t *testing.T) {
	// Standard CRC-16/CCITT-FALSE check vector
	got := CRC16([]byte("123456789"))
	if got != 0x29B1 {
		t.Errorf("CRC16(check vector) = 0x%04X, want 0x29B1", got)
	}
}

func TestCRC16Empty(t *testing.T) {
	if got := CRC16(nil); got != 0xFFFF {
		t.Errorf("CRC16(empty) = 0x%04X, want init value 0xFFFF", got)
	}
}

func TestCRC16SingleBitChange(t *testing.T) {
	data1 := []byte{0x05, 0x11, 0x01, 0x02, 0x03}
	data2 := []byte{0x05, 0x11, 0x01, 0x02, 0x02}

	if CRC16(data1) == CRC16(data2) {
		t.Errorf("CRC16 collision on single bit change: 0x%04X", CRC16(data1))
	}
}
