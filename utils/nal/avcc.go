package nal

import (
	"io"

	"github.com/ugparu/goh264/utils/bits/pio"
)

// Length-field widths supported by AVCC framing.
const (
	minLengthSize = 1
	maxLengthSize = 4
)

// AVCCReader iterates NAL units in a length-prefixed buffer, where each
// unit is preceded by a big-endian length field of a fixed width (1..4
// bytes, configured out of band, e.g. from an AVCDecoderConfRecord).
type AVCCReader struct {
	data       []byte
	lengthSize int
}

// NewAVCCReader returns a reader over b with the given length-field width.
func NewAVCCReader(b []byte, lengthSize int) (*AVCCReader, error) {
	if lengthSize < minLengthSize || lengthSize > maxLengthSize {
		return nil, MalformedFramingError{Reason: "length field width must be 1..4 bytes"}
	}
	return &AVCCReader{data: b, lengthSize: lengthSize}, nil
}

// Next returns the next NAL unit as a sub-slice of the source buffer, or
// io.EOF at a clean end of input. A length field overrunning the remaining
// bytes is a framing error, never an out-of-bounds access.
func (r *AVCCReader) Next() ([]byte, error) {
	if len(r.data) == 0 {
		return nil, io.EOF
	}
	if len(r.data) < r.lengthSize {
		return nil, MalformedFramingError{Reason: "truncated NAL unit length field"}
	}
	var n uint32
	switch r.lengthSize {
	case 1:
		n = uint32(r.data[0])
	case 2: //nolint:mnd
		n = uint32(pio.U16BE(r.data))
	case 3: //nolint:mnd
		n = pio.U24BE(r.data)
	case maxLengthSize:
		n = pio.U32BE(r.data)
	}
	rest := r.data[r.lengthSize:]
	if uint64(n) > uint64(len(rest)) {
		return nil, MalformedFramingError{Reason: "NAL unit length exceeds remaining buffer"}
	}
	r.data = rest[n:]
	return rest[:n], nil
}
