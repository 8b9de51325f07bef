package nal

// MalformedFramingError indicates bytes that violate the NAL framing layer:
// a declared length overrunning the buffer, a corrupt start code, or an
// illegal emulation-prevention sequence.
type MalformedFramingError struct {
	Reason string
}

// Error returns the error message for MalformedFramingError.
func (e MalformedFramingError) Error() string {
	return "malformed framing: " + e.Reason
}
