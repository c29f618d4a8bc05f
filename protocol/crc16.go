package protocol

// CRC16 calculates CRC-16/CCITT-FALSE (polynomial 0x1021, init 0xFFFF)
// over data. Both link ends must agree; the check value for "123456789"
// is 0x29B1.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
