package binary

// crcTable is the reflected CRC-16 table for polynomial 0x8005.
var crcTable [256]uint16

func init() {
	for i := range crcTable {
		c := uint16(i)
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = c>>1 ^ 0xA001
			} else {
				c >>= 1
			}
		}
		crcTable[i] = c
	}
}

// CRC16 continues the DWG checksum from seed over data.
func CRC16(seed uint16, data []byte) uint16 {
	dx := seed
	for _, b := range data {
		al := b ^ uint8(dx)
		dx = dx>>8 ^ crcTable[al]
	}
	return dx
}
