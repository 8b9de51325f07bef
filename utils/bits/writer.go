package bits

// Writer accumulates bits most-significant-first into a byte slice. It is
// the inverse of Reader and produces escape-free payload bytes.
type Writer struct {
	data    []byte
	cur     byte
	pending uint
}

// WriteBits appends the low n bits of v, most significant first.
func (w *Writer) WriteBits(v uint32, n uint) {
	for i := n; i > 0; i-- {
		bit := byte(v>>(i-1)) & 1
		w.cur = w.cur<<1 | bit
		w.pending++
		if w.pending == byteSize {
			w.data = append(w.data, w.cur)
			w.cur = 0
			w.pending = 0
		}
	}
}

// WriteFlag appends a single bit.
func (w *Writer) WriteFlag(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// maxUE is the largest value the 32-bit Exp-Golomb codec represents; the
// code for 1<<32-1 would need a 33rd leading-zero bit, which Reader
// rejects as an overflow.
const maxUE = 1<<32 - 2

// WriteUE appends v as an unsigned Exp-Golomb code. Values above maxUE
// are clamped to it so every emitted code round-trips through ReadUE.
func (w *Writer) WriteUE(v uint32) {
	if v > maxUE {
		v = maxUE
	}
	x := v + 1
	k := uint(0)
	for x>>(k+1) != 0 {
		k++
	}
	w.WriteBits(0, k)
	w.WriteBits(x, k+1)
}

// WriteSE appends v as a signed Exp-Golomb code.
func (w *Writer) WriteSE(v int32) {
	if v > 0 {
		w.WriteUE(uint32(v)*2 - 1)
	} else {
		w.WriteUE(uint32(-int64(v)) * 2) //nolint:gosec // -v fits uint32 via int64
	}
}

// WriteTrailingBits appends the rbsp_stop_one_bit and pads with zero bits
// to the next byte boundary.
func (w *Writer) WriteTrailingBits() {
	w.WriteBits(1, 1)
	for w.pending != 0 {
		w.WriteBits(0, 1)
	}
}

// ByteAligned reports whether the write position is on a byte boundary.
func (w *Writer) ByteAligned() bool {
	return w.pending == 0
}

// Bytes returns the bytes written so far. Bits of an incomplete final byte
// are not included; call WriteTrailingBits or pad first.
func (w *Writer) Bytes() []byte {
	return w.data
}
