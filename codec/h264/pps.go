package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
)

// Slice-group map types, spec table 7-18. Types 3..5 describe a changing
// group pattern.
const (
	SliceGroupInterleaved           = 0
	SliceGroupDispersed             = 1
	SliceGroupForegroundAndLeftover = 2
	SliceGroupChangingBoxOut        = 3
	SliceGroupChangingRasterScan    = 4
	SliceGroupChangingWipeOut       = 5
	SliceGroupExplicitAssignment    = 6
)

// H.264 A.2 allows at most 8 slice groups in any profile.
const maxNumSliceGroupsMinus1 = 7

// SliceRect is one foreground rectangle of slice-group map type 2.
type SliceRect struct {
	TopLeft     uint32
	BottomRight uint32
}

// SliceGroups is the decoded slice-group configuration; only the fields of
// the selected map type are populated.
type SliceGroups struct {
	NumSliceGroupsMinus1 uint32
	MapType              uint8
	RunLengthMinus1      []uint32    // map type 0
	Rectangles           []SliceRect // map type 2
	ChangeDirectionFlag  bool        // map types 3..5
	ChangeRateMinus1     uint32      // map types 3..5
	SliceGroupID         []uint32    // map type 6
}

// ChangeRate returns SliceGroupChangeRate for map types 3..5.
func (g *SliceGroups) ChangeRate() uint32 {
	return g.ChangeRateMinus1 + 1
}

func readSliceGroups(r *bits.Reader) (*SliceGroups, error) {
	numMinus1, err := r.ReadUE("num_slice_groups_minus1")
	if err != nil {
		return nil, err
	}
	if numMinus1 == 0 {
		return nil, nil
	}
	if numMinus1 > maxNumSliceGroupsMinus1 {
		return nil, RangeError{Field: "num_slice_groups_minus1", Value: int64(numMinus1), Min: 0, Max: maxNumSliceGroupsMinus1}
	}
	groups := SliceGroups{NumSliceGroupsMinus1: numMinus1}
	mapType, err := r.ReadUE("slice_group_map_type")
	if err != nil {
		return nil, err
	}
	if mapType > SliceGroupExplicitAssignment {
		return nil, RangeError{Field: "slice_group_map_type", Value: int64(mapType), Min: 0, Max: SliceGroupExplicitAssignment}
	}
	groups.MapType = uint8(mapType)
	switch mapType {
	case SliceGroupInterleaved:
		groups.RunLengthMinus1 = make([]uint32, numMinus1+1)
		for i := range groups.RunLengthMinus1 {
			if groups.RunLengthMinus1[i], err = r.ReadUE("run_length_minus1"); err != nil {
				return nil, err
			}
		}
	case SliceGroupDispersed:
	case SliceGroupForegroundAndLeftover:
		groups.Rectangles = make([]SliceRect, numMinus1+1)
		for i := range groups.Rectangles {
			if groups.Rectangles[i].TopLeft, err = r.ReadUE("top_left"); err != nil {
				return nil, err
			}
			if groups.Rectangles[i].BottomRight, err = r.ReadUE("bottom_right"); err != nil {
				return nil, err
			}
		}
	case SliceGroupChangingBoxOut, SliceGroupChangingRasterScan, SliceGroupChangingWipeOut:
		if groups.ChangeDirectionFlag, err = r.ReadFlag("slice_group_change_direction_flag"); err != nil {
			return nil, err
		}
		if groups.ChangeRateMinus1, err = r.ReadUE("slice_group_change_rate_minus1"); err != nil {
			return nil, err
		}
	case SliceGroupExplicitAssignment:
		sizeMinus1, err := r.ReadUE("pic_size_in_map_units_minus1")
		if err != nil {
			return nil, err
		}
		width := ceilLog2(uint64(numMinus1) + 1)
		// Grown as ids are read so a hostile count cannot size a huge
		// allocation from a few input bytes.
		for i := uint64(0); i <= uint64(sizeMinus1); i++ {
			id, err := r.ReadBits("slice_group_id", width)
			if err != nil {
				return nil, err
			}
			groups.SliceGroupID = append(groups.SliceGroupID, id)
		}
	}
	return &groups, nil
}

// ceilLog2 returns the number of bits needed to represent values 0..n-1.
func ceilLog2(n uint64) uint {
	width := uint(0)
	for 1<<width < n {
		width++
	}
	return width
}

// PPSExtension is the trailing more_rbsp_data block of a PPS: the 8x8
// transform flag, scaling-list overrides and the second chroma QP offset.
type PPSExtension struct {
	Transform8x8ModeFlag      bool
	PicScalingMatrix          *ScalingMatrix
	SecondChromaQpIndexOffset int32
}

const (
	maxNumRefIdxActiveMinus1 = 31
	maxWeightedBipredIdc     = 2
	minPicInitQpMinus26      = -(26 + 6*maxBitDepthMinus8)
	minPicInitQsMinus26      = -26
	maxPicInitQpMinus26      = 25
	maxChromaQpIndexOffset   = 12
	minChromaQpIndexOffset   = -12
)

// PPS is a decoded picture parameter set. It holds the id of the SPS it
// refers to rather than the SPS itself; the reference is resolved through
// a Context when a dependent slice is parsed.
type PPS struct {
	ID                                PPSID
	SPSID                             SPSID
	EntropyCodingModeFlag             bool
	BottomFieldPicOrderInFramePresent bool
	SliceGroups                       *SliceGroups
	NumRefIdxL0DefaultActiveMinus1    uint32
	NumRefIdxL1DefaultActiveMinus1    uint32
	WeightedPredFlag                  bool
	WeightedBipredIdc                 uint8
	PicInitQpMinus26                  int32
	PicInitQsMinus26                  int32
	ChromaQpIndexOffset               int32
	DeblockingFilterControlPresent    bool
	ConstrainedIntraPredFlag          bool
	RedundantPicCntPresentFlag        bool
	Extension                         *PPSExtension
}

// ParsePPS decodes a picture parameter set from escape-free RBSP bytes.
// The Context is consulted lazily: only a PPS carrying scaling-list
// overrides needs its SPS (for the chroma format), so a PPS naming a
// not-yet-seen SPS still parses and can be stored; the missing reference
// surfaces later, at slice resolution.
func ParsePPS(ctx *Context, rbsp []byte) (*PPS, error) {
	pps, err := parsePPS(ctx, rbsp)
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse PPS failed(%w)", err)
	}
	return pps, nil
}

func parsePPS(ctx *Context, rbsp []byte) (*PPS, error) {
	r := bits.NewReader(rbsp)
	var pps PPS
	id, err := r.ReadUE("pic_parameter_set_id")
	if err != nil {
		return nil, err
	}
	if id > maxParamSetID {
		return nil, RangeError{Field: "pic_parameter_set_id", Value: int64(id), Min: 0, Max: maxParamSetID}
	}
	pps.ID = PPSID(id)
	if pps.SPSID, err = readSPSID(r, "seq_parameter_set_id"); err != nil {
		return nil, err
	}
	if pps.EntropyCodingModeFlag, err = r.ReadFlag("entropy_coding_mode_flag"); err != nil {
		return nil, err
	}
	if pps.BottomFieldPicOrderInFramePresent, err = r.ReadFlag("bottom_field_pic_order_in_frame_present_flag"); err != nil {
		return nil, err
	}
	if pps.SliceGroups, err = readSliceGroups(r); err != nil {
		return nil, err
	}
	if pps.NumRefIdxL0DefaultActiveMinus1, err = readNumRefIdx(r, "num_ref_idx_l0_default_active_minus1"); err != nil {
		return nil, err
	}
	if pps.NumRefIdxL1DefaultActiveMinus1, err = readNumRefIdx(r, "num_ref_idx_l1_default_active_minus1"); err != nil {
		return nil, err
	}
	if pps.WeightedPredFlag, err = r.ReadFlag("weighted_pred_flag"); err != nil {
		return nil, err
	}
	bipred, err := r.ReadBits("weighted_bipred_idc", 2)
	if err != nil {
		return nil, err
	}
	if bipred > maxWeightedBipredIdc {
		return nil, RangeError{Field: "weighted_bipred_idc", Value: int64(bipred), Min: 0, Max: maxWeightedBipredIdc}
	}
	pps.WeightedBipredIdc = uint8(bipred)
	if pps.PicInitQpMinus26, err = readSERange(r, "pic_init_qp_minus26", minPicInitQpMinus26, maxPicInitQpMinus26); err != nil {
		return nil, err
	}
	if pps.PicInitQsMinus26, err = readSERange(r, "pic_init_qs_minus26", minPicInitQsMinus26, maxPicInitQpMinus26); err != nil {
		return nil, err
	}
	if pps.ChromaQpIndexOffset, err = readSERange(r, "chroma_qp_index_offset", minChromaQpIndexOffset, maxChromaQpIndexOffset); err != nil {
		return nil, err
	}
	if pps.DeblockingFilterControlPresent, err = r.ReadFlag("deblocking_filter_control_present_flag"); err != nil {
		return nil, err
	}
	if pps.ConstrainedIntraPredFlag, err = r.ReadFlag("constrained_intra_pred_flag"); err != nil {
		return nil, err
	}
	if pps.RedundantPicCntPresentFlag, err = r.ReadFlag("redundant_pic_cnt_present_flag"); err != nil {
		return nil, err
	}
	if r.MoreRBSPData() {
		if pps.Extension, err = readPPSExtension(ctx, r, &pps); err != nil {
			return nil, err
		}
	}
	if err := r.FinishRBSP(); err != nil {
		return nil, err
	}
	return &pps, nil
}

func readPPSExtension(ctx *Context, r *bits.Reader, pps *PPS) (*PPSExtension, error) {
	var ext PPSExtension
	var err error
	if ext.Transform8x8ModeFlag, err = r.ReadFlag("transform_8x8_mode_flag"); err != nil {
		return nil, err
	}
	matrixPresent, err := r.ReadFlag("pic_scaling_matrix_present_flag")
	if err != nil {
		return nil, err
	}
	if matrixPresent {
		// The list count depends on the chroma format of the referenced
		// SPS: 6 + (transform_8x8 ? (4:4:4 ? 6 : 2) : 0).
		sps, err := ctx.SPSByID(pps.SPSID)
		if err != nil {
			return nil, err
		}
		count8x8 := 0
		if ext.Transform8x8ModeFlag {
			count8x8 = 2
			if sps.ChromaInfo.ChromaFormat == ChromaYUV444 {
				count8x8 = 6
			}
		}
		matrix, err := readScalingMatrix(r, count8x8)
		if err != nil {
			return nil, err
		}
		ext.PicScalingMatrix = &matrix
	}
	if ext.SecondChromaQpIndexOffset, err = readSERange(r, "second_chroma_qp_index_offset", minChromaQpIndexOffset, maxChromaQpIndexOffset); err != nil {
		return nil, err
	}
	return &ext, nil
}

func readNumRefIdx(r *bits.Reader, field string) (uint32, error) {
	v, err := r.ReadUE(field)
	if err != nil {
		return 0, err
	}
	if v > maxNumRefIdxActiveMinus1 {
		return 0, RangeError{Field: field, Value: int64(v), Min: 0, Max: maxNumRefIdxActiveMinus1}
	}
	return v, nil
}

func readSERange(r *bits.Reader, field string, min, max int32) (int32, error) {
	v, err := r.ReadSE(field)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, RangeError{Field: field, Value: int64(v), Min: int64(min), Max: int64(max)}
	}
	return v, nil
}
