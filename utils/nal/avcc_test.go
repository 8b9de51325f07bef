package nal

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAVCCReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		lengthSize int
		in         []byte
		want       [][]byte
	}{
		{
			name:       "two_byte_lengths",
			lengthSize: 2,
			in:         []byte{0x00, 0x03, 0x65, 0x88, 0x10, 0x00, 0x02, 0x41, 0x9A},
			want:       [][]byte{{0x65, 0x88, 0x10}, {0x41, 0x9A}},
		},
		{
			name:       "four_byte_lengths",
			lengthSize: 4,
			in:         []byte{0x00, 0x00, 0x00, 0x02, 0x67, 0x42},
			want:       [][]byte{{0x67, 0x42}},
		},
		{
			name:       "one_byte_lengths",
			lengthSize: 1,
			in:         []byte{0x01, 0x09, 0x02, 0x41, 0x9A},
			want:       [][]byte{{0x09}, {0x41, 0x9A}},
		},
		{
			name:       "zero_length_unit",
			lengthSize: 2,
			in:         []byte{0x00, 0x00, 0x00, 0x01, 0x41},
			want:       [][]byte{{}, {0x41}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewAVCCReader(tt.in, tt.lengthSize)
			require.NoError(t, err)
			for _, want := range tt.want {
				unit, err := r.Next()
				require.NoError(t, err)
				require.Equal(t, want, unit)
			}
			_, err = r.Next()
			require.Equal(t, io.EOF, err)
		})
	}
}

func TestAVCCReaderMalformed(t *testing.T) {
	t.Parallel()

	t.Run("length_overruns_buffer", func(t *testing.T) {
		t.Parallel()
		r, err := NewAVCCReader([]byte{0x00, 0x05, 0x41}, 2)
		require.NoError(t, err)
		_, err = r.Next()
		require.IsType(t, MalformedFramingError{}, err)
	})

	t.Run("truncated_length_field", func(t *testing.T) {
		t.Parallel()
		r, err := NewAVCCReader([]byte{0x00}, 2)
		require.NoError(t, err)
		_, err = r.Next()
		require.IsType(t, MalformedFramingError{}, err)
	})

	t.Run("invalid_length_size", func(t *testing.T) {
		t.Parallel()
		_, err := NewAVCCReader(nil, 0)
		require.Error(t, err)
		_, err = NewAVCCReader(nil, 5)
		require.Error(t, err)
	})
}
