package nal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnescape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{
			name: "no_escapes",
			in:   []byte{0x12, 0x34, 0x00, 0x56},
			want: []byte{0x12, 0x34, 0x00, 0x56},
		},
		{
			name: "escaped_zero",
			in:   []byte{0x00, 0x00, 0x03, 0x00, 0x7A},
			want: []byte{0x00, 0x00, 0x00, 0x7A},
		},
		{
			name: "escaped_start_code",
			in:   []byte{0x12, 0x00, 0x00, 0x03, 0x01, 0x34},
			want: []byte{0x12, 0x00, 0x00, 0x01, 0x34},
		},
		{
			name: "escaped_three",
			in:   []byte{0x00, 0x00, 0x03, 0x03, 0x55},
			want: []byte{0x00, 0x00, 0x03, 0x55},
		},
		{
			name: "two_escapes",
			in:   []byte{0x00, 0x00, 0x03, 0x02, 0x00, 0x00, 0x03, 0x01},
			want: []byte{0x00, 0x00, 0x02, 0x00, 0x00, 0x01},
		},
		{
			name: "trailing_escape",
			in:   []byte{0x7B, 0x00, 0x00, 0x03},
			want: []byte{0x7B, 0x00, 0x00},
		},
		{
			name: "zeros_reset_after_escape",
			in:   []byte{0x00, 0x00, 0x03, 0x00, 0x00, 0x03, 0x00},
			want: []byte{0x00, 0x00, 0x00, 0x00, 0x00},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := Unescape(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, out)
		})
	}
}

func TestUnescapeZeroCopy(t *testing.T) {
	t.Parallel()

	in := []byte{0x12, 0x00, 0x00, 0x04, 0x56}
	out, err := Unescape(in)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.Same(t, &in[0], &out[0])
}

func TestUnescapeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
	}{
		{name: "three_zeros", in: []byte{0x41, 0x00, 0x00, 0x00, 0x41}},
		{name: "bad_byte_after_escape", in: []byte{0x00, 0x00, 0x03, 0x04}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Unescape(tt.in)
			require.Error(t, err)
			require.IsType(t, MalformedFramingError{}, err)
		})
	}
}

func TestUnescapeNal(t *testing.T) {
	t.Parallel()

	unit := []byte{0x67, 0x00, 0x00, 0x03, 0x01}
	out, err := UnescapeNal(unit)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x00, 0x01}, out)

	_, err = UnescapeFrom([]byte{0x67}, 4)
	require.Error(t, err)
}

func TestEscapeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "plain", payload: []byte{0x12, 0x34, 0x56}},
		{name: "start_code", payload: []byte{0x00, 0x00, 0x01}},
		{name: "three_zeros", payload: []byte{0x00, 0x00, 0x00}},
		{name: "trailing_zeros", payload: []byte{0x41, 0x00, 0x00}},
		{name: "long_zero_run", payload: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}},
		{name: "escape_byte_itself", payload: []byte{0x00, 0x00, 0x03, 0x00, 0x00, 0x03}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			escaped := Escape(tt.payload)
			out, err := Unescape(escaped)
			require.NoError(t, err)
			require.Equal(t, tt.payload, out)
		})
	}
}

func TestEscapeInsertsPrevention(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]byte{0x00, 0x00, 0x03, 0x01, 0x65},
		Escape([]byte{0x00, 0x00, 0x01, 0x65}))
}
