package bits

import "fmt"

// TruncatedError indicates that a read ran past the end of the buffer.
// Field names the syntax element that was being read.
type TruncatedError struct {
	Field string
	Bits  uint
}

// Error returns the error message for TruncatedError.
func (e TruncatedError) Error() string {
	return fmt.Sprintf("truncated bitstream: %d more bits needed for %s", e.Bits, e.Field)
}

// OverflowError indicates an Exp-Golomb code too large to represent in 32 bits.
type OverflowError struct {
	Field string
}

// Error returns the error message for OverflowError.
func (e OverflowError) Error() string {
	return fmt.Sprintf("exp-golomb code for %s exceeds 32 bits", e.Field)
}

// TrailingBitsError indicates malformed rbsp_trailing_bits at the end of a payload.
type TrailingBitsError struct {
	Reason string
}

// Error returns the error message for TrailingBitsError.
func (e TrailingBitsError) Error() string {
	return "bad rbsp_trailing_bits: " + e.Reason
}
