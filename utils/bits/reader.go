// Package bits implements MSB-first bit-level reading and writing over
// byte slices, including the Exp-Golomb codes used by H.264 syntax.
package bits

const byteSize = 8

// maxUnaryZeros bounds the leading-zero run of an Exp-Golomb code so the
// decoded value fits in 32 bits.
const maxUnaryZeros = 31

// Reader consumes bits most-significant-first from a byte slice. The slice
// must already be free of emulation-prevention bytes.
type Reader struct {
	data []byte
	pos  uint
}

// NewReader returns a Reader over b, positioned at the first bit.
func NewReader(b []byte) *Reader {
	return &Reader{data: b}
}

// BitsRead reports how many bits have been consumed so far.
func (r *Reader) BitsRead() uint {
	return r.pos
}

// ByteAligned reports whether the read position is on a byte boundary.
func (r *Reader) ByteAligned() bool {
	return r.pos%byteSize == 0
}

// ReadBits reads n bits (0..32) as an unsigned value. field names the
// syntax element and is carried in any error.
func (r *Reader) ReadBits(field string, n uint) (v uint32, err error) {
	if remaining := uint(len(r.data))*byteSize - r.pos; n > remaining {
		return 0, TruncatedError{Field: field, Bits: n - remaining}
	}
	for i := uint(0); i < n; i++ {
		b := r.data[r.pos/byteSize]
		bit := (b >> (byteSize - 1 - r.pos%byteSize)) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}
	return v, nil
}

// ReadFlag reads a single bit as a bool.
func (r *Reader) ReadFlag(field string) (bool, error) {
	v, err := r.ReadBits(field, 1)
	return v == 1, err
}

// ReadUE reads an unsigned Exp-Golomb code: k leading zero bits, a one bit,
// then k suffix bits, decoding to 2^k-1+suffix. The decodable domain is
// 0..1<<32-2; longer codes are overflow errors.
func (r *Reader) ReadUE(field string) (uint32, error) {
	k := uint(0)
	for {
		bit, err := r.ReadBits(field, 1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		k++
		if k > maxUnaryZeros {
			return 0, OverflowError{Field: field}
		}
	}
	suffix, err := r.ReadBits(field, k)
	if err != nil {
		return 0, err
	}
	return (1<<k - 1) + suffix, nil
}

// ReadSE reads a signed Exp-Golomb code: odd codes map to positive values,
// even codes to negative.
func (r *Reader) ReadSE(field string) (int32, error) {
	ue, err := r.ReadUE(field)
	if err != nil {
		return 0, err
	}
	if ue%2 == 1 {
		return int32((ue + 1) / 2), nil //nolint:gosec // (ue+1)/2 <= 2^31-1
	}
	return -int32(ue / 2), nil //nolint:gosec // ue/2 <= 2^31-1
}

// MoreRBSPData reports whether syntax elements remain before the
// rbsp_stop_one_bit, per the more_rbsp_data() condition of the H.264
// syntax tables.
func (r *Reader) MoreRBSPData() bool {
	last := len(r.data) - 1
	for last >= 0 && r.data[last] == 0 {
		last--
	}
	if last < 0 {
		return false
	}
	// Bit index of the last set bit, which is the stop bit.
	b := r.data[last]
	trailingZeros := uint(0)
	for b&1 == 0 {
		b >>= 1
		trailingZeros++
	}
	stopBit := uint(last)*byteSize + (byteSize - 1 - trailingZeros)
	return r.pos < stopBit
}

// FinishRBSP consumes and validates rbsp_trailing_bits: a one bit, zero
// bits to the next byte boundary, and nothing but zero bytes after (CABAC
// zero words are tolerated).
func (r *Reader) FinishRBSP() error {
	stop, err := r.ReadBits("rbsp_stop_one_bit", 1)
	if err != nil {
		return err
	}
	if stop != 1 {
		return TrailingBitsError{Reason: "rbsp_stop_one_bit is zero"}
	}
	for !r.ByteAligned() {
		bit, err := r.ReadBits("rbsp_alignment_zero_bit", 1)
		if err != nil {
			return err
		}
		if bit != 0 {
			return TrailingBitsError{Reason: "nonzero rbsp_alignment_zero_bit"}
		}
	}
	for r.pos < uint(len(r.data))*byteSize {
		if r.data[r.pos/byteSize] != 0 {
			return TrailingBitsError{Reason: "nonzero byte after rbsp_trailing_bits"}
		}
		r.pos += byteSize
	}
	return nil
}

// FinishSEIPayload validates the end of an SEI payload, which omits the
// stop bit when the payload already ends byte-aligned.
func (r *Reader) FinishSEIPayload() error {
	if r.ByteAligned() && r.pos == uint(len(r.data))*byteSize {
		return nil
	}
	return r.FinishRBSP()
}
