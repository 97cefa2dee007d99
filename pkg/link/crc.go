package link

// checksum computes CRC-16/CCITT-FALSE.
func checksum(crc uint16, data ...byte) uint16 {
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

const checksumInit uint16 = 0xffff
