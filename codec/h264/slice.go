package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
)

// SliceFamily is the prediction family of a slice type.
type SliceFamily uint8

// Slice prediction families, spec table 7-6.
const (
	SliceP SliceFamily = iota
	SliceB
	SliceI
	SliceSP
	SliceSI
)

func (f SliceFamily) String() string {
	switch f {
	case SliceP:
		return "P"
	case SliceB:
		return "B"
	case SliceI:
		return "I"
	case SliceSP:
		return "SP"
	case SliceSI:
		return "SI"
	default:
		return fmt.Sprintf("SliceFamily(%d)", uint8(f))
	}
}

// SliceType is the decoded slice_type: family plus the exclusive variant
// (ids 5..9) promising all slices of the picture share the type.
type SliceType struct {
	Family    SliceFamily
	Exclusive bool
}

const maxSliceTypeID = 9

func sliceTypeFromID(id uint32) (SliceType, error) {
	if id > maxSliceTypeID {
		return SliceType{}, RangeError{Field: "slice_type", Value: int64(id), Min: 0, Max: maxSliceTypeID}
	}
	families := [5]SliceFamily{SliceP, SliceB, SliceI, SliceSP, SliceSI}
	return SliceType{Family: families[id%5], Exclusive: id >= 5}, nil //nolint:mnd
}

// ColourPlane identifies the plane coded by a slice when the SPS separates
// colour planes.
type ColourPlane uint8

// Colour planes, spec table 7-7.
const (
	PlaneY  ColourPlane = 0
	PlaneCb ColourPlane = 1
	PlaneCr ColourPlane = 2
)

// NumRefIdxActive is the optional per-slice override of the reference list
// sizes. L1ActiveMinus1 is set for B slices only.
type NumRefIdxActive struct {
	L0ActiveMinus1 uint32
	L1ActiveMinus1 *uint32
}

// Reference-picture-list modification codes, spec tables 7-8 and H-1.
// Codes 4 and 5 occur only in MVC slice extensions and address a view
// index rather than a picture number.
const (
	ModificationSubtractPicNum  = 0
	ModificationAddPicNum       = 1
	ModificationLongTermPicNum  = 2
	modificationEnd             = 3
	ModificationSubtractViewIdx = 4
	ModificationAddViewIdx      = 5
)

// RefPicListModification is one entry of a modification list. Value holds
// abs_diff_pic_num_minus1, long_term_pic_num or abs_diff_view_idx_minus1
// depending on Idc.
type RefPicListModification struct {
	Idc   uint8
	Value uint32
}

// RefPicListModifications carries the l0 and (for B slices) l1
// modification lists.
type RefPicListModifications struct {
	L0 []RefPicListModification
	L1 []RefPicListModification
}

func readModificationList(r *bits.Reader, mvc bool) ([]RefPicListModification, error) {
	present, err := r.ReadFlag("ref_pic_list_modification_flag")
	if err != nil || !present {
		return nil, err
	}
	var list []RefPicListModification
	for {
		idc, err := r.ReadUE("modification_of_pic_nums_idc")
		if err != nil {
			return nil, err
		}
		var field string
		switch idc {
		case ModificationSubtractPicNum, ModificationAddPicNum:
			field = "abs_diff_pic_num_minus1"
		case ModificationLongTermPicNum:
			field = "long_term_pic_num"
		case modificationEnd:
			return list, nil
		case ModificationSubtractViewIdx, ModificationAddViewIdx:
			if !mvc {
				return nil, RangeError{Field: "modification_of_pic_nums_idc", Value: int64(idc), Min: 0, Max: modificationEnd}
			}
			field = "abs_diff_view_idx_minus1"
		default:
			max := int64(modificationEnd)
			if mvc {
				max = ModificationAddViewIdx
			}
			return nil, RangeError{Field: "modification_of_pic_nums_idc", Value: int64(idc), Min: 0, Max: max}
		}
		v, err := r.ReadUE(field)
		if err != nil {
			return nil, err
		}
		list = append(list, RefPicListModification{Idc: uint8(idc), Value: v})
	}
}

// PredWeight is one explicit weight/offset pair.
type PredWeight struct {
	Weight int32
	Offset int32
}

// WeightEntry holds the weights for one reference picture. Luma is nil
// when the luma flag was clear; Chroma has two entries (Cb, Cr) or none.
type WeightEntry struct {
	Luma   *PredWeight
	Chroma []PredWeight
}

// PredWeightTable is the explicit weighted-prediction table.
// ChromaLog2WeightDenom is nil for monochrome streams, and L1 is set for
// B slices only.
type PredWeightTable struct {
	LumaLog2WeightDenom   uint32
	ChromaLog2WeightDenom *uint32
	L0                    []WeightEntry
	L1                    []WeightEntry
}

func readWeightEntries(r *bits.Reader, count uint32, chroma bool) ([]WeightEntry, error) {
	entries := make([]WeightEntry, count)
	for i := range entries {
		lumaPresent, err := r.ReadFlag("luma_weight_flag")
		if err != nil {
			return nil, err
		}
		if lumaPresent {
			var w PredWeight
			if w.Weight, err = r.ReadSE("luma_weight"); err != nil {
				return nil, err
			}
			if w.Offset, err = r.ReadSE("luma_offset"); err != nil {
				return nil, err
			}
			entries[i].Luma = &w
		}
		if !chroma {
			continue
		}
		chromaPresent, err := r.ReadFlag("chroma_weight_flag")
		if err != nil {
			return nil, err
		}
		if chromaPresent {
			entries[i].Chroma = make([]PredWeight, 2) //nolint:mnd // Cb and Cr
			for j := range entries[i].Chroma {
				if entries[i].Chroma[j].Weight, err = r.ReadSE("chroma_weight"); err != nil {
					return nil, err
				}
				if entries[i].Chroma[j].Offset, err = r.ReadSE("chroma_offset"); err != nil {
					return nil, err
				}
			}
		}
	}
	return entries, nil
}

func readPredWeightTable(r *bits.Reader, sliceType SliceType, pps *PPS, sps *SPS, override *NumRefIdxActive) (*PredWeightTable, error) {
	chroma := sps.ChromaInfo.ChromaArrayType() != ChromaMonochrome
	var table PredWeightTable
	var err error
	if table.LumaLog2WeightDenom, err = r.ReadUE("luma_log2_weight_denom"); err != nil {
		return nil, err
	}
	if chroma {
		denom, err := r.ReadUE("chroma_log2_weight_denom")
		if err != nil {
			return nil, err
		}
		table.ChromaLog2WeightDenom = &denom
	}
	l0Count := pps.NumRefIdxL0DefaultActiveMinus1 + 1
	l1Count := pps.NumRefIdxL1DefaultActiveMinus1 + 1
	if override != nil {
		l0Count = override.L0ActiveMinus1 + 1
		if override.L1ActiveMinus1 != nil {
			l1Count = *override.L1ActiveMinus1 + 1
		}
	}
	if table.L0, err = readWeightEntries(r, l0Count, chroma); err != nil {
		return nil, err
	}
	if sliceType.Family == SliceB {
		if table.L1, err = readWeightEntries(r, l1Count, chroma); err != nil {
			return nil, err
		}
	}
	return &table, nil
}

// Memory management control operations, spec table 7-9.
const (
	mmcoEnd                      = 0
	MmcoShortTermUnusedForRef    = 1
	MmcoLongTermUnusedForRef     = 2
	MmcoShortTermUsedForLongTerm = 3
	MmcoMaxUsedLongTermFrameRef  = 4
	MmcoAllRefPicturesUnused     = 5
	MmcoCurrentUsedForLongTerm   = 6
)

// MemoryManagementControl is one adaptive reference-marking operation;
// the value fields used depend on Operation.
type MemoryManagementControl struct {
	Operation                 uint8
	DifferenceOfPicNumsMinus1 uint32 // ops 1 and 3
	LongTermPicNum            uint32 // op 2
	LongTermFrameIdx          uint32 // ops 3 and 6
	MaxLongTermFrameIdxPlus1  uint32 // op 4
}

// DecRefPicMarking is the decoded reference-picture marking block. For IDR
// pictures the two flags apply; otherwise Adaptive holds the control
// operations, nil meaning the sliding-window mode.
type DecRefPicMarking struct {
	Idr                     bool
	NoOutputOfPriorPicsFlag bool
	LongTermReferenceFlag   bool
	Adaptive                []MemoryManagementControl
}

func readDecRefPicMarking(r *bits.Reader, idrPic bool) (*DecRefPicMarking, error) {
	var marking DecRefPicMarking
	var err error
	if idrPic {
		marking.Idr = true
		if marking.NoOutputOfPriorPicsFlag, err = r.ReadFlag("no_output_of_prior_pics_flag"); err != nil {
			return nil, err
		}
		if marking.LongTermReferenceFlag, err = r.ReadFlag("long_term_reference_flag"); err != nil {
			return nil, err
		}
		return &marking, nil
	}
	adaptive, err := r.ReadFlag("adaptive_ref_pic_marking_mode_flag")
	if err != nil {
		return nil, err
	}
	if !adaptive {
		return &marking, nil
	}
	for {
		op, err := r.ReadUE("memory_management_control_operation")
		if err != nil {
			return nil, err
		}
		if op == mmcoEnd {
			if marking.Adaptive == nil {
				marking.Adaptive = []MemoryManagementControl{}
			}
			return &marking, nil
		}
		if op > MmcoCurrentUsedForLongTerm {
			return nil, RangeError{Field: "memory_management_control_operation", Value: int64(op), Min: 0, Max: MmcoCurrentUsedForLongTerm}
		}
		ctl := MemoryManagementControl{Operation: uint8(op)}
		switch op {
		case MmcoShortTermUnusedForRef:
			if ctl.DifferenceOfPicNumsMinus1, err = r.ReadUE("difference_of_pic_nums_minus1"); err != nil {
				return nil, err
			}
		case MmcoLongTermUnusedForRef:
			if ctl.LongTermPicNum, err = r.ReadUE("long_term_pic_num"); err != nil {
				return nil, err
			}
		case MmcoShortTermUsedForLongTerm:
			if ctl.DifferenceOfPicNumsMinus1, err = r.ReadUE("difference_of_pic_nums_minus1"); err != nil {
				return nil, err
			}
			if ctl.LongTermFrameIdx, err = r.ReadUE("long_term_frame_idx"); err != nil {
				return nil, err
			}
		case MmcoMaxUsedLongTermFrameRef:
			if ctl.MaxLongTermFrameIdxPlus1, err = r.ReadUE("max_long_term_frame_idx_plus1"); err != nil {
				return nil, err
			}
		case MmcoCurrentUsedForLongTerm:
			if ctl.LongTermFrameIdx, err = r.ReadUE("long_term_frame_idx"); err != nil {
				return nil, err
			}
		}
		marking.Adaptive = append(marking.Adaptive, ctl)
	}
}

const (
	maxSliceQp                    = 51
	maxSliceQs                    = 51
	maxDisableDeblockingFilterIdc = 6
	maxDeblockingOffsetDiv2       = 6
)

// SliceHeader is a decoded slice_header (spec 7.3.3 / H.7.3.3). Optional
// fields are nil when the governing flags or slice type exclude them.
type SliceHeader struct {
	FirstMbInSlice             uint32
	SliceType                  SliceType
	PPSID                      PPSID
	ColourPlane                *ColourPlane
	FrameNum                   uint16
	FieldPicFlag               bool
	BottomFieldFlag            bool
	IdrPicID                   *uint32
	PicOrderCntLsb             *uint32
	DeltaPicOrderCntBottom     *int32
	DeltaPicOrderCnt           []int32
	RedundantPicCnt            *uint32
	DirectSpatialMvPredFlag    *bool
	NumRefIdxActive            *NumRefIdxActive
	RefPicListModification     RefPicListModifications
	PredWeightTable            *PredWeightTable
	DecRefPicMarking           *DecRefPicMarking
	CabacInitIdc               *uint32
	SliceQpDelta               int32
	SliceQp                    int32
	SpForSwitchFlag            *bool
	SliceQs                    *int32
	DisableDeblockingFilterIdc uint8
	SliceAlphaC0OffsetDiv2     int32
	SliceBetaOffsetDiv2        int32
	SliceGroupChangeCycle      *uint32
}

// IdrPic reports whether a slice of the given unit type and header
// extension codes an IDR picture. For MVC slice extensions the indicator
// comes from the extension header, not the unit type.
func IdrPic(unitType UnitType, ext *HeaderExtension) bool {
	if unitType == UnitSliceIdr {
		return true
	}
	if ext == nil {
		return false
	}
	if ext.Mvc != nil {
		return !ext.Mvc.NonIdrFlag()
	}
	if ext.Svc != nil {
		return ext.Svc.IdrFlag()
	}
	return false
}

// ParseSliceHeader decodes a slice header from escape-free RBSP bytes.
// The PPS named by the slice and that PPS's SPS are resolved through ctx;
// either being absent is an UnresolvedRefError. Unit types 20 and 21
// require the NAL header extension in ext; other types ignore it.
//
// Only the header is decoded; slice data following it is not consumed.
func ParseSliceHeader(ctx *Context, rbsp []byte, hdr Header, ext *HeaderExtension) (*SliceHeader, error) {
	sh, err := parseSliceHeader(ctx, rbsp, hdr, ext)
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse slice header failed(%w)", err)
	}
	return sh, nil
}

func parseSliceHeader(ctx *Context, rbsp []byte, hdr Header, ext *HeaderExtension) (*SliceHeader, error) {
	unitType := hdr.Type()
	mvc := unitType == UnitSliceExtension || unitType == UnitSliceExtensionDepth
	if mvc && ext == nil {
		return nil, fmt.Errorf("slice extension requires the NAL header extension: %w",
			RangeError{Field: "nal_unit_header_extension", Value: 0, Min: 1, Max: 1})
	}
	idrPic := IdrPic(unitType, ext)

	r := bits.NewReader(rbsp)
	var sh SliceHeader
	var err error
	if sh.FirstMbInSlice, err = r.ReadUE("first_mb_in_slice"); err != nil {
		return nil, err
	}
	typeID, err := r.ReadUE("slice_type")
	if err != nil {
		return nil, err
	}
	if sh.SliceType, err = sliceTypeFromID(typeID); err != nil {
		return nil, err
	}
	ppsID, err := r.ReadUE("pic_parameter_set_id")
	if err != nil {
		return nil, err
	}
	if ppsID > maxParamSetID {
		return nil, RangeError{Field: "pic_parameter_set_id", Value: int64(ppsID), Min: 0, Max: maxParamSetID}
	}
	sh.PPSID = PPSID(ppsID)
	pps, err := ctx.PPSByID(sh.PPSID)
	if err != nil {
		return nil, err
	}
	sps, err := ctx.SPSByID(pps.SPSID)
	if err != nil {
		return nil, err
	}
	if sps.ChromaInfo.SeparateColourPlaneFlag {
		plane, err := r.ReadBits("colour_plane_id", 2)
		if err != nil {
			return nil, err
		}
		if plane > uint32(PlaneCr) {
			return nil, RangeError{Field: "colour_plane_id", Value: int64(plane), Min: 0, Max: int64(PlaneCr)}
		}
		p := ColourPlane(plane)
		sh.ColourPlane = &p
	}
	frameNum, err := r.ReadBits("frame_num", uint(sps.Log2MaxFrameNum()))
	if err != nil {
		return nil, err
	}
	sh.FrameNum = uint16(frameNum)
	if !sps.FrameMbsFlags.FrameMbsOnly {
		if sh.FieldPicFlag, err = r.ReadFlag("field_pic_flag"); err != nil {
			return nil, err
		}
		if sh.FieldPicFlag {
			if sh.BottomFieldFlag, err = r.ReadFlag("bottom_field_flag"); err != nil {
				return nil, err
			}
		}
	}
	if idrPic {
		id, err := r.ReadUE("idr_pic_id")
		if err != nil {
			return nil, err
		}
		sh.IdrPicID = &id
	}
	if err := readSlicePicOrderCnt(r, &sh, sps, pps); err != nil {
		return nil, err
	}
	if pps.RedundantPicCntPresentFlag {
		cnt, err := r.ReadUE("redundant_pic_cnt")
		if err != nil {
			return nil, err
		}
		sh.RedundantPicCnt = &cnt
	}
	family := sh.SliceType.Family
	if family == SliceB {
		direct, err := r.ReadFlag("direct_spatial_mv_pred_flag")
		if err != nil {
			return nil, err
		}
		sh.DirectSpatialMvPredFlag = &direct
	}
	if family == SliceP || family == SliceSP || family == SliceB {
		override, err := r.ReadFlag("num_ref_idx_active_override_flag")
		if err != nil {
			return nil, err
		}
		if override {
			var active NumRefIdxActive
			if active.L0ActiveMinus1, err = r.ReadUE("num_ref_idx_l0_active_minus1"); err != nil {
				return nil, err
			}
			if family == SliceB {
				l1, err := r.ReadUE("num_ref_idx_l1_active_minus1")
				if err != nil {
					return nil, err
				}
				active.L1ActiveMinus1 = &l1
			}
			sh.NumRefIdxActive = &active
		}
	}
	if family != SliceI && family != SliceSI {
		if sh.RefPicListModification.L0, err = readModificationList(r, mvc); err != nil {
			return nil, err
		}
		if family == SliceB {
			if sh.RefPicListModification.L1, err = readModificationList(r, mvc); err != nil {
				return nil, err
			}
		}
	}
	weighted := (pps.WeightedPredFlag && (family == SliceP || family == SliceSP)) ||
		(pps.WeightedBipredIdc == 1 && family == SliceB)
	if weighted {
		if sh.PredWeightTable, err = readPredWeightTable(r, sh.SliceType, pps, sps, sh.NumRefIdxActive); err != nil {
			return nil, err
		}
	}
	if hdr.RefIdc() != 0 {
		if sh.DecRefPicMarking, err = readDecRefPicMarking(r, idrPic); err != nil {
			return nil, err
		}
	}
	if pps.EntropyCodingModeFlag && family != SliceI && family != SliceSI {
		idc, err := r.ReadUE("cabac_init_idc")
		if err != nil {
			return nil, err
		}
		sh.CabacInitIdc = &idc
	}
	if sh.SliceQpDelta, err = r.ReadSE("slice_qp_delta"); err != nil {
		return nil, err
	}
	qpBdOffsetY := 6 * int32(sps.ChromaInfo.BitDepthLumaMinus8)
	sh.SliceQp = 26 + pps.PicInitQpMinus26 + sh.SliceQpDelta
	if sh.SliceQp < -qpBdOffsetY || sh.SliceQp > maxSliceQp {
		return nil, RangeError{Field: "slice_qp_delta", Value: int64(sh.SliceQp), Min: int64(-qpBdOffsetY), Max: maxSliceQp}
	}
	if family == SliceSP || family == SliceSI {
		if family == SliceSP {
			sp, err := r.ReadFlag("sp_for_switch_flag")
			if err != nil {
				return nil, err
			}
			sh.SpForSwitchFlag = &sp
		}
		qsDelta, err := r.ReadSE("slice_qs_delta")
		if err != nil {
			return nil, err
		}
		qs := 26 + pps.PicInitQsMinus26 + qsDelta
		if qs < 0 || qs > maxSliceQs {
			return nil, RangeError{Field: "slice_qs_delta", Value: int64(qs), Min: 0, Max: maxSliceQs}
		}
		sh.SliceQs = &qs
	}
	if pps.DeblockingFilterControlPresent {
		idc, err := r.ReadUE("disable_deblocking_filter_idc")
		if err != nil {
			return nil, err
		}
		if idc > maxDisableDeblockingFilterIdc {
			return nil, RangeError{Field: "disable_deblocking_filter_idc", Value: int64(idc), Min: 0, Max: maxDisableDeblockingFilterIdc}
		}
		sh.DisableDeblockingFilterIdc = uint8(idc)
		if idc != 1 {
			if sh.SliceAlphaC0OffsetDiv2, err = readSERange(r, "slice_alpha_c0_offset_div2", -maxDeblockingOffsetDiv2, maxDeblockingOffsetDiv2); err != nil {
				return nil, err
			}
			if sh.SliceBetaOffsetDiv2, err = readSERange(r, "slice_beta_offset_div2", -maxDeblockingOffsetDiv2, maxDeblockingOffsetDiv2); err != nil {
				return nil, err
			}
		}
	}
	if g := pps.SliceGroups; g != nil && g.MapType >= SliceGroupChangingBoxOut && g.MapType <= SliceGroupChangingWipeOut {
		picSize := (uint64(sps.PicWidthInMbsMinus1) + 1) * (uint64(sps.PicHeightInMapUnitsMinus1) + 1)
		width := ceilLog2(picSize/uint64(g.ChangeRate()) + 1)
		cycle, err := r.ReadBits("slice_group_change_cycle", width)
		if err != nil {
			return nil, err
		}
		sh.SliceGroupChangeCycle = &cycle
	}
	return &sh, nil
}

func readSlicePicOrderCnt(r *bits.Reader, sh *SliceHeader, sps *SPS, pps *PPS) error {
	switch sps.PicOrderCnt.Type {
	case 0:
		lsb, err := r.ReadBits("pic_order_cnt_lsb", uint(sps.PicOrderCnt.Log2MaxPicOrderCntLsbMinus4)+4)
		if err != nil {
			return err
		}
		sh.PicOrderCntLsb = &lsb
		if pps.BottomFieldPicOrderInFramePresent && !sh.FieldPicFlag {
			delta, err := r.ReadSE("delta_pic_order_cnt_bottom")
			if err != nil {
				return err
			}
			sh.DeltaPicOrderCntBottom = &delta
		}
	case 1:
		if sps.PicOrderCnt.DeltaPicOrderAlwaysZeroFlag {
			return nil
		}
		first, err := r.ReadSE("delta_pic_order_cnt")
		if err != nil {
			return err
		}
		sh.DeltaPicOrderCnt = []int32{first}
		if pps.BottomFieldPicOrderInFramePresent && !sh.FieldPicFlag {
			second, err := r.ReadSE("delta_pic_order_cnt")
			if err != nil {
				return err
			}
			sh.DeltaPicOrderCnt = append(sh.DeltaPicOrderCnt, second)
		}
	}
	return nil
}
