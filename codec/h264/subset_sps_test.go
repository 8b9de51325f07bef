package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/goh264/utils/bits"
)

// writeExtendedProfileSPS writes a full SPS for a profile carrying the
// chroma info fields, through the VUI flag.
func writeExtendedProfileSPS(w *bits.Writer, profileIdc uint32) {
	w.WriteBits(profileIdc, 8) // profile_idc
	w.WriteBits(0x00, 8)       // constraint flags
	w.WriteBits(40, 8)         // level_idc
	w.WriteUE(0)               // seq_parameter_set_id
	w.WriteUE(1)               // chroma_format_idc
	w.WriteUE(0)               // bit_depth_luma_minus8
	w.WriteUE(0)               // bit_depth_chroma_minus8
	w.WriteFlag(false)         // qpprime_y_zero_transform_bypass_flag
	w.WriteFlag(false)         // seq_scaling_matrix_present_flag
	writeSPSTail(w, 21, 17)
}

func TestParseSubsetSPSNoExtension(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	w.WriteBits(66, 8)   // profile_idc: Baseline
	w.WriteBits(0xC0, 8) // constraint flags
	w.WriteBits(30, 8)   // level_idc
	w.WriteUE(0)         // seq_parameter_set_id
	writeSPSTail(&w, 21, 17)
	w.WriteFlag(false) // additional_extension2_flag
	w.WriteTrailingBits()

	sub, err := ParseSubsetSPS(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, ProfileBaseline, sub.SPS.Profile())
	require.Nil(t, sub.Svc)
	require.Nil(t, sub.Mvc)
	require.False(t, sub.AdditionalExtension2Flag)
}

func TestParseSubsetSPSMvc(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	writeExtendedProfileSPS(&w, 128) // Stereo High
	w.WriteFlag(true)                // bit_equal_to_one
	w.WriteUE(1)                     // num_views_minus1
	w.WriteUE(0)                     // view_id[0]
	w.WriteUE(2)                     // view_id[1]
	w.WriteUE(1)                     // num_anchor_refs_l0[1]
	w.WriteUE(0)                     // anchor_ref_l0[1][0]
	w.WriteUE(0)                     // num_anchor_refs_l1[1]
	w.WriteUE(0)                     // num_non_anchor_refs_l0[1]
	w.WriteUE(0)                     // num_non_anchor_refs_l1[1]
	w.WriteUE(0)                     // num_level_values_signalled_minus1
	w.WriteBits(40, 8)               // level_idc
	w.WriteUE(0)                     // num_applicable_ops_minus1
	w.WriteBits(0, 3)                // applicable_op_temporal_id
	w.WriteUE(0)                     // applicable_op_num_target_views_minus1
	w.WriteUE(2)                     // applicable_op_target_view_id
	w.WriteUE(1)                     // applicable_op_num_views_minus1
	w.WriteFlag(false)               // mvc_vui_parameters_present_flag
	w.WriteFlag(false)               // additional_extension2_flag
	w.WriteTrailingBits()

	sub, err := ParseSubsetSPS(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, ProfileStereoHigh, sub.SPS.Profile())
	require.Nil(t, sub.Svc)
	require.NotNil(t, sub.Mvc)

	require.Len(t, sub.Mvc.Views, 2)
	require.Equal(t, uint16(0), sub.Mvc.Views[0].ViewID)
	require.Equal(t, uint16(2), sub.Mvc.Views[1].ViewID)
	require.Empty(t, sub.Mvc.Views[0].AnchorRefsL0)
	require.Equal(t, []uint16{0}, sub.Mvc.Views[1].AnchorRefsL0)
	require.Empty(t, sub.Mvc.Views[1].NonAnchorRefsL0)

	require.Len(t, sub.Mvc.LevelValues, 1)
	level := sub.Mvc.LevelValues[0]
	require.Equal(t, uint8(40), level.LevelIdc)
	require.Len(t, level.ApplicableOps, 1)
	require.Equal(t, []uint16{2}, level.ApplicableOps[0].TargetViewIDs)
	require.Equal(t, uint16(1), level.ApplicableOps[0].NumViewsMinus1)

	require.False(t, sub.MvcVuiParametersPresent)
}

func TestParseSubsetSPSSvc(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	writeExtendedProfileSPS(&w, 83) // Scalable Baseline
	w.WriteFlag(true)               // bit_equal_to_one
	w.WriteFlag(false)              // inter_layer_deblocking_filter_control_present_flag
	w.WriteBits(1, 2)               // extended_spatial_scalability_idc
	w.WriteFlag(true)               // chroma_phase_x_plus1_flag
	w.WriteBits(1, 2)               // chroma_phase_y_plus1
	w.WriteFlag(false)              // seq_ref_layer_chroma_phase_x_plus1_flag
	w.WriteBits(2, 2)               // seq_ref_layer_chroma_phase_y_plus1
	w.WriteSE(-8)                   // seq_scaled_ref_layer_left_offset
	w.WriteSE(0)                    // seq_scaled_ref_layer_top_offset
	w.WriteSE(8)                    // seq_scaled_ref_layer_right_offset
	w.WriteSE(0)                    // seq_scaled_ref_layer_bottom_offset
	w.WriteFlag(true)               // seq_tcoeff_level_prediction_flag
	w.WriteFlag(true)               // adaptive_tcoeff_level_prediction_flag
	w.WriteFlag(false)              // slice_header_restriction_flag
	w.WriteFlag(false)              // svc_vui_parameters_present_flag
	w.WriteFlag(false)              // additional_extension2_flag
	w.WriteTrailingBits()

	sub, err := ParseSubsetSPS(w.Bytes())
	require.NoError(t, err)
	require.Nil(t, sub.Mvc)
	require.NotNil(t, sub.Svc)

	svc := sub.Svc
	require.Equal(t, uint8(1), svc.ExtendedSpatialScalabilityIdc)
	require.True(t, svc.ChromaPhaseXPlus1Flag)
	require.Equal(t, uint8(1), svc.ChromaPhaseYPlus1)
	require.False(t, svc.SeqRefLayerChromaPhaseXPlus1Flag)
	require.Equal(t, uint8(2), svc.SeqRefLayerChromaPhaseYPlus1)
	require.Equal(t, int32(-8), svc.SeqScaledRefLayerLeftOffset)
	require.Equal(t, int32(8), svc.SeqScaledRefLayerRightOffset)
	require.True(t, svc.SeqTcoeffLevelPredictionFlag)
	require.True(t, svc.AdaptiveTcoeffLevelPredictionFlag)
	require.False(t, svc.SvcVuiParametersPresentFlag)
}

func TestParseSubsetSPSViewCountOutOfRange(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	writeExtendedProfileSPS(&w, 128)
	w.WriteFlag(true) // bit_equal_to_one
	w.WriteUE(1024)   // num_views_minus1
	w.WriteTrailingBits()

	_, err := ParseSubsetSPS(w.Bytes())
	var rangeErr RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "num_views_minus1", rangeErr.Field)
	require.Equal(t, int64(1024), rangeErr.Value)
}
