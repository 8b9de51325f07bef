package nal

import (
	"github.com/ugparu/goh264/utils/logger"
)

const startCodeLen = 3

// AnnexBReader incrementally splits a start-code delimited byte stream into
// NAL units. Callers feed arbitrarily sized buffers through Push; the emit
// callback receives each unit, without its start code and with trailing
// zero padding trimmed, as soon as the next start code is observed. Close
// flushes the final unit.
//
// Emitted slices may alias the pushed buffer or the reader's internal tail
// buffer and are valid only until the callback returns.
type AnnexBReader struct {
	emit    func(unit []byte)
	pending []byte
	scanned int
	started bool
}

// NewAnnexBReader returns a reader delivering units to emit.
func NewAnnexBReader(emit func(unit []byte)) *AnnexBReader {
	return &AnnexBReader{emit: emit}
}

// Push feeds the next chunk of the stream. Units may span any number of
// pushes; only the unconsumed tail is retained between calls.
func (r *AnnexBReader) Push(p []byte) {
	buf := p
	i := 0
	if len(r.pending) > 0 {
		r.pending = append(r.pending, p...)
		buf = r.pending
		i = r.scanned
	}
	start := 0
	for i+2 < len(buf) {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			r.boundary(buf[start:i])
			i += startCodeLen
			start = i
			continue
		}
		// No start code can begin at i, i+1 or i+2 unless the third
		// byte ahead is a zero or a one.
		if buf[i+2] > 1 {
			i += startCodeLen
		} else {
			i++
		}
	}
	tail := buf[start:]
	if !r.started && len(tail) > 2 { //nolint:mnd // only a trailing 00 00 can begin the first start code
		tail = tail[len(tail)-2:]
	}
	r.pending = append(r.pending[:0], tail...)
	r.scanned = len(r.pending) - 2 //nolint:mnd // resume where a spanning start code could begin
	if r.scanned < 0 {
		r.scanned = 0
	}
}

// Close flushes the in-progress unit and resets the reader for a new
// stream.
func (r *AnnexBReader) Close() {
	if r.started {
		if unit := trimTrailingZeros(r.pending); len(unit) > 0 {
			r.emit(unit)
		}
	}
	r.pending = r.pending[:0]
	r.scanned = 0
	r.started = false
}

func (r *AnnexBReader) boundary(b []byte) {
	b = trimTrailingZeros(b)
	if !r.started {
		r.started = true
		if len(b) > 0 {
			logger.Debugf("AnnexBReader", "skipped %d bytes before first start code", len(b))
		}
		return
	}
	if len(b) > 0 {
		r.emit(b)
	}
}

func trimTrailingZeros(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}

// SplitAnnexB is a one-shot convenience over AnnexBReader for callers that
// already hold the whole stream in memory.
func SplitAnnexB(b []byte) (units [][]byte) {
	r := NewAnnexBReader(func(unit []byte) {
		units = append(units, unit)
	})
	r.Push(b)
	r.Close()
	return units
}
