// Package checksum implements the 8-bit running checksum carried in every
// packet footer.
//
// The algorithm is CRC-8 with polynomial 0x07, zero init and no final xor.
// Update can be called once over a whole buffer or repeatedly over pieces of
// it, feeding each result back in as the next seed; both give the same value.
package checksum

const poly = 0x07

var table = makeTable()

func makeTable() [256]uint8 {
	var t [256]uint8
	for i := range t {
		crc := uint8(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Calculate returns the checksum of b starting from a zero seed.
func Calculate(b []byte) uint8 {
	return Update(0, b)
}

// Update folds b into seed and returns the new value.
func Update(seed uint8, b []byte) uint8 {
	crc := seed
	for _, v := range b {
		crc = table[crc^v]
	}
	return crc
}
