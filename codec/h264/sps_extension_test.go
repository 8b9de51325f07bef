package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/goh264/utils/bits"
)

func TestParseSPSExtension(t *testing.T) {
	t.Parallel()

	t.Run("no_aux_format", func(t *testing.T) {
		t.Parallel()

		ext, err := ParseSPSExtension([]byte{0xD0})
		require.NoError(t, err)
		require.Equal(t, SPSID(0), ext.ID)
		require.Equal(t, uint32(0), ext.AuxFormatIdc)
		require.Nil(t, ext.AuxFormatInfo)
		require.False(t, ext.AdditionalExtensionFlag)
	})

	t.Run("alpha_aux_format", func(t *testing.T) {
		t.Parallel()

		ext, err := ParseSPSExtension([]byte{0xAB, 0xFE, 0x00, 0x40})
		require.NoError(t, err)
		require.Equal(t, SPSID(0), ext.ID)
		require.Equal(t, uint32(1), ext.AuxFormatIdc)
		require.NotNil(t, ext.AuxFormatInfo)
		require.Equal(t, uint8(0), ext.AuxFormatInfo.BitDepthAuxMinus8)
		require.False(t, ext.AuxFormatInfo.AlphaIncrFlag)
		require.Equal(t, uint32(511), ext.AuxFormatInfo.AlphaOpaqueValue)
		require.Equal(t, uint32(0), ext.AuxFormatInfo.AlphaTransparentValue)
	})
}

func TestParseSPSExtensionBitDepthOutOfRange(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	w.WriteUE(0) // seq_parameter_set_id
	w.WriteUE(1) // aux_format_idc
	w.WriteUE(5) // bit_depth_aux_minus8
	w.WriteTrailingBits()

	_, err := ParseSPSExtension(w.Bytes())
	var rangeErr RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "bit_depth_aux_minus8", rangeErr.Field)
	require.Equal(t, int64(5), rangeErr.Value)
}

func TestParseSPSExtensionTruncated(t *testing.T) {
	t.Parallel()

	_, err := ParseSPSExtension([]byte{0xA0})
	var truncatedErr bits.TruncatedError
	require.ErrorAs(t, err, &truncatedErr)
}
