package h264

import (
	"errors"
	"fmt"
)

// RangeError indicates a fully decoded syntax element whose value violates
// a legality bound, as opposed to data that could not be decoded at all.
type RangeError struct {
	Field string
	Value int64
	Min   int64
	Max   int64
}

// Error returns the error message for RangeError.
func (e RangeError) Error() string {
	return fmt.Sprintf("%s value %d outside legal range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// UnresolvedRefError indicates a reference to a parameter set that is not
// present in the Context. It is also the not-found error returned by
// Context lookups.
type UnresolvedRefError struct {
	Kind string
	ID   uint8
}

// Error returns the error message for UnresolvedRefError.
func (e UnresolvedRefError) Error() string {
	return fmt.Sprintf("%s with id %d not found in context", e.Kind, e.ID)
}

// ErrDecconfInvalid reports a malformed AVCDecoderConfRecord.
var ErrDecconfInvalid = errors.New("h264parser: AVCDecoderConfRecord invalid")
