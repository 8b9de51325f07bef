package nal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitAnnexB(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want [][]byte
	}{
		{
			name: "three_byte_start_codes",
			in:   []byte{0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x00, 0x01, 0x68, 0xCE},
			want: [][]byte{{0x67, 0x42}, {0x68, 0xCE}},
		},
		{
			name: "four_byte_start_codes",
			in:   []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x00, 0x00, 0x01, 0x65, 0x88},
			want: [][]byte{{0x67, 0x42}, {0x65, 0x88}},
		},
		{
			name: "mixed_start_codes",
			in:   []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x00, 0x00, 0x01, 0x68},
			want: [][]byte{{0x67}, {0x68}},
		},
		{
			name: "garbage_before_first_start_code",
			in:   []byte{0xDE, 0xAD, 0x00, 0x00, 0x01, 0x41, 0x9A},
			want: [][]byte{{0x41, 0x9A}},
		},
		{
			name: "single_unit",
			in:   []byte{0x00, 0x00, 0x01, 0x09, 0x10},
			want: [][]byte{{0x09, 0x10}},
		},
		{
			name: "no_start_code",
			in:   []byte{0x41, 0x9A, 0x42},
			want: nil,
		},
		{
			name: "unit_with_zero_byte_content",
			in:   []byte{0x00, 0x00, 0x01, 0x41, 0x00, 0x9A, 0x00, 0x00, 0x01, 0x42},
			want: [][]byte{{0x41, 0x00, 0x9A}, {0x42}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, SplitAnnexB(tt.in))
		})
	}
}

func TestAnnexBReaderTrimsTrailingZeros(t *testing.T) {
	t.Parallel()

	// The zeros before the second start code belong to that start code's
	// prefix, not to the first unit.
	in := []byte{0x00, 0x00, 0x01, 0x41, 0x9A, 0x00, 0x00, 0x00, 0x00, 0x01, 0x42}
	require.Equal(t, [][]byte{{0x41, 0x9A}, {0x42}}, SplitAnnexB(in))
}

func TestAnnexBReaderSplitInvariance(t *testing.T) {
	t.Parallel()

	stream := []byte{
		0xEE, // garbage
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1E,
		0x00, 0x00, 0x01, 0x68, 0xCE, 0x38, 0x80,
		0x00, 0x00, 0x01, 0x65, 0x88, 0x00, 0x01, 0x9A, 0x00,
	}
	want := SplitAnnexB(stream)
	require.Len(t, want, 3)

	for split := 1; split < len(stream); split++ {
		var got [][]byte
		r := NewAnnexBReader(func(unit []byte) {
			got = append(got, append([]byte(nil), unit...))
		})
		r.Push(stream[:split])
		r.Push(stream[split:])
		r.Close()
		require.Equal(t, want, got, "split at %d", split)
	}
}

func TestAnnexBReaderByteAtATime(t *testing.T) {
	t.Parallel()

	stream := []byte{0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x00, 0x01, 0x68, 0xCE}

	var got [][]byte
	r := NewAnnexBReader(func(unit []byte) {
		got = append(got, append([]byte(nil), unit...))
	})
	for _, b := range stream {
		r.Push([]byte{b})
	}
	r.Close()
	require.Equal(t, [][]byte{{0x67, 0x42}, {0x68, 0xCE}}, got)
}

func TestAnnexBReaderReuseAfterClose(t *testing.T) {
	t.Parallel()

	var got [][]byte
	r := NewAnnexBReader(func(unit []byte) {
		got = append(got, append([]byte(nil), unit...))
	})

	r.Push([]byte{0x00, 0x00, 0x01, 0x41})
	r.Close()
	r.Push([]byte{0x00, 0x00, 0x01, 0x42})
	r.Close()

	require.Equal(t, [][]byte{{0x41}, {0x42}}, got)
}
