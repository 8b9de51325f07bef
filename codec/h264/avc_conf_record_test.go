package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/goh264/utils/nal"
)

func spsNalUnit(t *testing.T) []byte {
	t.Helper()
	return append([]byte{0x67}, buildBaselineSPS(0, 21, 17)...)
}

func ppsNalUnit(t *testing.T) []byte {
	t.Helper()
	return append([]byte{0x68}, buildPPS(0, 0)...)
}

func TestAVCDecoderConfRecordRoundTrip(t *testing.T) {
	t.Parallel()

	src := AVCDecoderConfRecord{
		AVCProfileIndication: 66,
		ProfileCompatibility: 0xC0,
		AVCLevelIndication:   30,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{spsNalUnit(t)},
		PPS:                  [][]byte{ppsNalUnit(t)},
	}
	b := make([]byte, src.Len())
	n := src.Marshal(b)
	require.Equal(t, len(b), n)

	var dst AVCDecoderConfRecord
	n, err := dst.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, src.AVCProfileIndication, dst.AVCProfileIndication)
	require.Equal(t, src.LengthSizeMinusOne, dst.LengthSizeMinusOne)
	require.Equal(t, src.SPS, dst.SPS)
	require.Equal(t, src.PPS, dst.PPS)
	require.Nil(t, dst.Extension)
}

func TestAVCDecoderConfRecordExtensionRoundTrip(t *testing.T) {
	t.Parallel()

	src := AVCDecoderConfRecord{
		AVCProfileIndication: 100,
		AVCLevelIndication:   40,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{{0x67, 0x64, 0x00, 0x28}},
		PPS:                  [][]byte{{0x68, 0xEB, 0x80}},
		Extension: &ConfRecordExtension{
			ChromaFormat:         1,
			BitDepthLumaMinus8:   2,
			BitDepthChromaMinus8: 2,
			SPSExt:               [][]byte{{0x6D, 0xD0}},
		},
	}
	b := make([]byte, src.Len())
	src.Marshal(b)

	var dst AVCDecoderConfRecord
	n, err := dst.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.NotNil(t, dst.Extension)
	require.Equal(t, uint8(1), dst.Extension.ChromaFormat)
	require.Equal(t, uint8(2), dst.Extension.BitDepthLumaMinus8)
	require.Equal(t, uint8(2), dst.Extension.BitDepthChromaMinus8)
	require.Equal(t, src.Extension.SPSExt, dst.Extension.SPSExt)
}

func TestAVCDecoderConfRecordUnmarshalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		b    []byte
	}{
		{name: "too_short", b: []byte{1, 66, 0, 30}},
		{name: "bad_version", b: []byte{2, 66, 0, 30, 0xFF, 0xE1, 0x00}},
		{name: "sps_overruns", b: []byte{1, 66, 0, 30, 0xFF, 0xE1, 0x00, 0x10, 0x67}},
		{name: "missing_pps_count", b: []byte{1, 66, 0, 30, 0xFF, 0xE1, 0x00, 0x00}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var avc AVCDecoderConfRecord
			_, err := avc.Unmarshal(tt.b)
			require.ErrorIs(t, err, ErrDecconfInvalid)
		})
	}
}

func TestAVCDecoderConfRecordNoExtensionBytes(t *testing.T) {
	t.Parallel()

	// A High-profile record that ends right after the PPS array predates
	// the extension fields and stays valid.
	src := AVCDecoderConfRecord{
		AVCProfileIndication: 100,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{{0x67, 0x64}},
		PPS:                  [][]byte{{0x68, 0xEB}},
	}
	b := make([]byte, src.Len())
	src.Marshal(b)

	var dst AVCDecoderConfRecord
	n, err := dst.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Nil(t, dst.Extension)
}

func TestAVCDecoderConfRecordCreateContext(t *testing.T) {
	t.Parallel()

	avc := AVCDecoderConfRecord{
		AVCProfileIndication: 66,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{spsNalUnit(t)},
		PPS:                  [][]byte{ppsNalUnit(t)},
	}
	ctx, err := avc.CreateContext()
	require.NoError(t, err)

	sps, err := ctx.SPSByID(0)
	require.NoError(t, err)
	require.Equal(t, ProfileBaseline, sps.Profile())

	pps, err := ctx.PPSByID(0)
	require.NoError(t, err)
	require.Equal(t, SPSID(0), pps.SPSID)
}

func TestAVCDecoderConfRecordCreateContextWrongUnitType(t *testing.T) {
	t.Parallel()

	avc := AVCDecoderConfRecord{
		AVCProfileIndication: 66,
		SPS:                  [][]byte{ppsNalUnit(t)}, // PPS where an SPS belongs
		PPS:                  nil,
	}
	_, err := avc.CreateContext()
	var framingErr nal.MalformedFramingError
	require.ErrorAs(t, err, &framingErr)
}
