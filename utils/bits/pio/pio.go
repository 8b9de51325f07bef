// Package pio provides big-endian byte order helpers for binary parsing and serialization.
package pio

// U16BE reads a big-endian uint16 from the first two bytes of b.
func U16BE(b []byte) (i uint16) {
	i = uint16(b[0])
	i <<= 8
	i |= uint16(b[1])
	return
}

// U24BE reads a big-endian 24-bit value from the first three bytes of b.
func U24BE(b []byte) (i uint32) {
	i = uint32(b[0])
	i <<= 8
	i |= uint32(b[1])
	i <<= 8
	i |= uint32(b[2])
	return
}

// U32BE reads a big-endian uint32 from the first four bytes of b.
func U32BE(b []byte) (i uint32) {
	i = uint32(b[0])
	i <<= 8
	i |= uint32(b[1])
	i <<= 8
	i |= uint32(b[2])
	i <<= 8
	i |= uint32(b[3])
	return
}

// PutU16BE writes v to the first two bytes of b in big-endian order.
func PutU16BE(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// PutU24BE writes the low 24 bits of v to the first three bytes of b in big-endian order.
func PutU24BE(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// PutU32BE writes v to the first four bytes of b in big-endian order.
func PutU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
