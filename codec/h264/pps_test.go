package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/goh264/utils/bits"
)

func buildHighSPS(id uint32, chromaIdc uint32) []byte {
	var w bits.Writer
	w.WriteBits(100, 8)  // profile_idc: High
	w.WriteBits(0x00, 8) // constraint flags
	w.WriteBits(40, 8)   // level_idc
	w.WriteUE(id)        // seq_parameter_set_id
	w.WriteUE(chromaIdc) // chroma_format_idc
	if chromaIdc == 3 {
		w.WriteFlag(false) // separate_colour_plane_flag
	}
	w.WriteUE(0)       // bit_depth_luma_minus8
	w.WriteUE(0)       // bit_depth_chroma_minus8
	w.WriteFlag(false) // qpprime_y_zero_transform_bypass_flag
	w.WriteFlag(false) // seq_scaling_matrix_present_flag
	writeSPSTail(&w, 21, 17)
	w.WriteTrailingBits()
	return w.Bytes()
}

// writePPSBase writes every mandatory PPS field with a single slice group.
func writePPSBase(w *bits.Writer, id, spsID uint32, entropyCoding bool) {
	w.WriteUE(id)              // pic_parameter_set_id
	w.WriteUE(spsID)           // seq_parameter_set_id
	w.WriteFlag(entropyCoding) // entropy_coding_mode_flag
	w.WriteFlag(false)         // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(0)               // num_slice_groups_minus1
	w.WriteUE(2)               // num_ref_idx_l0_default_active_minus1
	w.WriteUE(0)               // num_ref_idx_l1_default_active_minus1
	w.WriteFlag(false)         // weighted_pred_flag
	w.WriteBits(0, 2)          // weighted_bipred_idc
	w.WriteSE(-4)              // pic_init_qp_minus26
	w.WriteSE(0)               // pic_init_qs_minus26
	w.WriteSE(2)               // chroma_qp_index_offset
	w.WriteFlag(true)          // deblocking_filter_control_present_flag
	w.WriteFlag(false)         // constrained_intra_pred_flag
	w.WriteFlag(false)         // redundant_pic_cnt_present_flag
}

func buildPPS(id, spsID uint32) []byte {
	var w bits.Writer
	writePPSBase(&w, id, spsID, true)
	w.WriteTrailingBits()
	return w.Bytes()
}

func TestParsePPS(t *testing.T) {
	t.Parallel()

	ctx := NewContext()
	pps, err := ParsePPS(ctx, buildPPS(1, 0))
	require.NoError(t, err)

	require.Equal(t, PPSID(1), pps.ID)
	require.Equal(t, SPSID(0), pps.SPSID)
	require.True(t, pps.EntropyCodingModeFlag)
	require.Nil(t, pps.SliceGroups)
	require.Equal(t, uint32(2), pps.NumRefIdxL0DefaultActiveMinus1)
	require.Equal(t, int32(-4), pps.PicInitQpMinus26)
	require.Equal(t, int32(2), pps.ChromaQpIndexOffset)
	require.True(t, pps.DeblockingFilterControlPresent)
	require.Nil(t, pps.Extension)
}

func TestParsePPSBeforeSPS(t *testing.T) {
	t.Parallel()

	// A PPS naming a not-yet-seen SPS must parse and be storable; the
	// reference is checked only when something depends on it.
	ctx := NewContext()
	pps, err := ParsePPS(ctx, buildPPS(0, 7))
	require.NoError(t, err)
	ctx.PutPPS(pps)

	stored, err := ctx.PPSByID(0)
	require.NoError(t, err)
	require.Equal(t, SPSID(7), stored.SPSID)

	_, err = ctx.SPSByID(stored.SPSID)
	require.IsType(t, UnresolvedRefError{}, err)
}

func TestParsePPSIDOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := ParsePPS(NewContext(), buildPPS(32, 0))
	var rangeErr RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "pic_parameter_set_id", rangeErr.Field)
}

func TestParsePPSExtensionWithoutMatrix(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	writePPSBase(&w, 0, 5, false)
	w.WriteFlag(true)  // transform_8x8_mode_flag
	w.WriteFlag(false) // pic_scaling_matrix_present_flag
	w.WriteSE(-3)      // second_chroma_qp_index_offset
	w.WriteTrailingBits()

	// No SPS in the context: the extension must still parse because the
	// chroma format is only needed when a scaling matrix is present.
	pps, err := ParsePPS(NewContext(), w.Bytes())
	require.NoError(t, err)
	require.NotNil(t, pps.Extension)
	require.True(t, pps.Extension.Transform8x8ModeFlag)
	require.Nil(t, pps.Extension.PicScalingMatrix)
	require.Equal(t, int32(-3), pps.Extension.SecondChromaQpIndexOffset)
}

func TestParsePPSExtensionScalingListCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		chromaIdc uint32
		lists     int
	}{
		{name: "yuv422_eight_lists", chromaIdc: 2, lists: 8},
		{name: "yuv444_twelve_lists", chromaIdc: 3, lists: 12},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := NewContext()
			sps, err := ParseSPS(buildHighSPS(0, tt.chromaIdc))
			require.NoError(t, err)
			ctx.PutSPS(sps)

			var w bits.Writer
			writePPSBase(&w, 0, 0, false)
			w.WriteFlag(true) // transform_8x8_mode_flag
			w.WriteFlag(true) // pic_scaling_matrix_present_flag
			for i := 0; i < tt.lists; i++ {
				w.WriteFlag(false) // pic_scaling_list_present_flag
			}
			w.WriteSE(0) // second_chroma_qp_index_offset
			w.WriteTrailingBits()

			pps, err := ParsePPS(ctx, w.Bytes())
			require.NoError(t, err)
			require.NotNil(t, pps.Extension.PicScalingMatrix)
			require.Len(t, pps.Extension.PicScalingMatrix.List8x8, tt.lists-6)
		})
	}
}

func TestParsePPSExtensionMatrixNeedsSPS(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	writePPSBase(&w, 0, 3, false)
	w.WriteFlag(true) // transform_8x8_mode_flag
	w.WriteFlag(true) // pic_scaling_matrix_present_flag
	w.WriteBits(0, 8) // never reached
	w.WriteTrailingBits()

	_, err := ParsePPS(NewContext(), w.Bytes())
	var refErr UnresolvedRefError
	require.ErrorAs(t, err, &refErr)
	require.Equal(t, "SPS", refErr.Kind)
	require.Equal(t, uint8(3), refErr.ID)
}

func TestParsePPSSliceGroups(t *testing.T) {
	t.Parallel()

	t.Run("interleaved_run_lengths", func(t *testing.T) {
		t.Parallel()

		var w bits.Writer
		w.WriteUE(0)       // pic_parameter_set_id
		w.WriteUE(0)       // seq_parameter_set_id
		w.WriteFlag(false) // entropy_coding_mode_flag
		w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
		w.WriteUE(1)       // num_slice_groups_minus1
		w.WriteUE(0)       // slice_group_map_type: interleaved
		w.WriteUE(25)      // run_length_minus1[0]
		w.WriteUE(12)      // run_length_minus1[1]
		w.WriteUE(0)       // num_ref_idx_l0_default_active_minus1
		w.WriteUE(0)       // num_ref_idx_l1_default_active_minus1
		w.WriteFlag(false) // weighted_pred_flag
		w.WriteBits(0, 2)  // weighted_bipred_idc
		w.WriteSE(0)       // pic_init_qp_minus26
		w.WriteSE(0)       // pic_init_qs_minus26
		w.WriteSE(0)       // chroma_qp_index_offset
		w.WriteFlag(false) // deblocking_filter_control_present_flag
		w.WriteFlag(false) // constrained_intra_pred_flag
		w.WriteFlag(false) // redundant_pic_cnt_present_flag
		w.WriteTrailingBits()

		pps, err := ParsePPS(NewContext(), w.Bytes())
		require.NoError(t, err)
		require.NotNil(t, pps.SliceGroups)
		require.Equal(t, uint8(SliceGroupInterleaved), pps.SliceGroups.MapType)
		require.Equal(t, []uint32{25, 12}, pps.SliceGroups.RunLengthMinus1)
	})

	t.Run("explicit_assignment_id_width", func(t *testing.T) {
		t.Parallel()

		var w bits.Writer
		w.WriteUE(0)       // pic_parameter_set_id
		w.WriteUE(0)       // seq_parameter_set_id
		w.WriteFlag(false) // entropy_coding_mode_flag
		w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
		w.WriteUE(2)       // num_slice_groups_minus1: 3 groups
		w.WriteUE(6)       // slice_group_map_type: explicit
		w.WriteUE(3)       // pic_size_in_map_units_minus1
		for _, id := range []uint32{0, 1, 2, 1} {
			w.WriteBits(id, 2) // slice_group_id, ceil(log2(3)) bits
		}
		w.WriteUE(0)       // num_ref_idx_l0_default_active_minus1
		w.WriteUE(0)       // num_ref_idx_l1_default_active_minus1
		w.WriteFlag(false) // weighted_pred_flag
		w.WriteBits(0, 2)  // weighted_bipred_idc
		w.WriteSE(0)       // pic_init_qp_minus26
		w.WriteSE(0)       // pic_init_qs_minus26
		w.WriteSE(0)       // chroma_qp_index_offset
		w.WriteFlag(false) // deblocking_filter_control_present_flag
		w.WriteFlag(false) // constrained_intra_pred_flag
		w.WriteFlag(false) // redundant_pic_cnt_present_flag
		w.WriteTrailingBits()

		pps, err := ParsePPS(NewContext(), w.Bytes())
		require.NoError(t, err)
		require.Equal(t, []uint32{0, 1, 2, 1}, pps.SliceGroups.SliceGroupID)
	})
}

func TestParsePPSSliceGroupCountOutOfRange(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	w.WriteUE(0)       // pic_parameter_set_id
	w.WriteUE(0)       // seq_parameter_set_id
	w.WriteFlag(false) // entropy_coding_mode_flag
	w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(8)       // num_slice_groups_minus1 above the limit
	w.WriteTrailingBits()

	_, err := ParsePPS(NewContext(), w.Bytes())
	var rangeErr RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "num_slice_groups_minus1", rangeErr.Field)
	require.Equal(t, int64(8), rangeErr.Value)
	require.Equal(t, int64(maxNumSliceGroupsMinus1), rangeErr.Max)
}

func TestParsePPSSliceGroupIDHostileCount(t *testing.T) {
	t.Parallel()

	// A declared map-unit count far beyond the bits actually present
	// must fail on the first missing slice_group_id, not allocate for
	// the full count.
	var w bits.Writer
	w.WriteUE(0)       // pic_parameter_set_id
	w.WriteUE(0)       // seq_parameter_set_id
	w.WriteFlag(false) // entropy_coding_mode_flag
	w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(1)       // num_slice_groups_minus1
	w.WriteUE(6)       // slice_group_map_type: explicit
	w.WriteUE(1 << 28) // pic_size_in_map_units_minus1
	w.WriteTrailingBits()

	_, err := ParsePPS(NewContext(), w.Bytes())
	var truncErr bits.TruncatedError
	require.ErrorAs(t, err, &truncErr)
	require.Equal(t, "slice_group_id", truncErr.Field)
}

func TestParsePPSQpOutOfRange(t *testing.T) {
	t.Parallel()

	var w bits.Writer
	w.WriteUE(0)       // pic_parameter_set_id
	w.WriteUE(0)       // seq_parameter_set_id
	w.WriteFlag(false) // entropy_coding_mode_flag
	w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(0)       // num_slice_groups_minus1
	w.WriteUE(0)       // num_ref_idx_l0_default_active_minus1
	w.WriteUE(0)       // num_ref_idx_l1_default_active_minus1
	w.WriteFlag(false) // weighted_pred_flag
	w.WriteBits(0, 2)  // weighted_bipred_idc
	w.WriteSE(30)      // pic_init_qp_minus26 above the limit
	w.WriteTrailingBits()

	_, err := ParsePPS(NewContext(), w.Bytes())
	var rangeErr RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "pic_init_qp_minus26", rangeErr.Field)
}
