// Package nal implements NAL unit framing for H.264 elementary streams:
// start-code delimited (Annex B) and length-prefixed (AVCC) splitting, and
// the emulation-prevention byte codec between a unit's physical bytes and
// its logical RBSP payload.
package nal

import "bytes"

// Emulation-prevention byte and the highest byte value it may precede.
const (
	emulationPreventionByte = 0x03
	maxEscapedByte          = 0x03
)

// Unescape removes emulation-prevention bytes (0x03 after two zero bytes)
// from b. When b contains no escape sequences the input slice itself is
// returned, without copying; callers must not mutate the source buffer
// while using the result. Three consecutive zero bytes, or an escape
// followed by a byte above 0x03, are framing errors.
//
// Escape detection never looks past the end of b, so callers working with
// length-prefixed data must slice to the declared payload length first.
func Unescape(b []byte) ([]byte, error) {
	var out []byte
	mark := 0 // start of the pending literal segment once copying
	i := 0
	for i < len(b) {
		// Escapes only occur inside zero runs; skip to the next zero byte.
		z := bytes.IndexByte(b[i:], 0x00)
		if z < 0 {
			break
		}
		run := i + z
		j := run
		for j < len(b) && b[j] == 0x00 {
			j++
		}
		switch {
		case j-run >= 3: //nolint:mnd
			return nil, MalformedFramingError{Reason: "three consecutive zero bytes within NAL unit"}
		case j-run == 2 && j < len(b) && b[j] == emulationPreventionByte:
			if j+1 < len(b) && b[j+1] > maxEscapedByte {
				return nil, MalformedFramingError{Reason: "invalid byte after emulation prevention"}
			}
			if out == nil {
				out = make([]byte, 0, len(b)-1)
			}
			out = append(out, b[mark:j]...)
			mark = j + 1
			i = j + 1
		default:
			i = j + 1
		}
	}
	if out == nil {
		return b, nil
	}
	return append(out, b[mark:]...), nil
}

// UnescapeNal is Unescape positioned after the 1-byte NAL unit header.
func UnescapeNal(unit []byte) ([]byte, error) {
	return UnescapeFrom(unit, 1)
}

// UnescapeFrom is Unescape after skipping a caller-specified header width,
// for units with extended headers or related codecs with wider headers.
func UnescapeFrom(unit []byte, skip int) ([]byte, error) {
	if skip > len(unit) {
		return nil, MalformedFramingError{Reason: "NAL unit shorter than its header"}
	}
	return Unescape(unit[skip:])
}

// Escape performs the inverse insertion: a 0x03 byte before any byte in
// 0x00..0x03 that follows two zero bytes. Unescape(Escape(p)) == p for all
// payloads.
func Escape(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	zeros := 0
	for _, c := range payload {
		if zeros >= 2 && c <= maxEscapedByte { //nolint:mnd
			out = append(out, emulationPreventionByte)
			zeros = 0
		}
		out = append(out, c)
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
