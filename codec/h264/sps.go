package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
)

// Profile is the classification derived from profile_idc.
type Profile uint8

// Profiles defined by the H.264 spec annexes A, F, G, H and I.
const (
	ProfileUnknown                Profile = 0
	ProfileBaseline               Profile = 66
	ProfileMain                   Profile = 77
	ProfileExtended               Profile = 88
	ProfileHigh                   Profile = 100
	ProfileHigh10                 Profile = 110
	ProfileHigh422                Profile = 122
	ProfileHigh444                Profile = 244
	ProfileCAVLC444               Profile = 44
	ProfileScalableBase           Profile = 83
	ProfileScalableHigh           Profile = 86
	ProfileMultiviewHigh          Profile = 118
	ProfileStereoHigh             Profile = 128
	ProfileMFCHigh                Profile = 134
	ProfileMFCDepthHigh           Profile = 135
	ProfileMultiviewDepthHigh     Profile = 138
	ProfileEnhancedMultiviewDepth Profile = 139
)

// ProfileFromIdc maps a profile_idc value to its classification, or
// ProfileUnknown for values the standard leaves unassigned.
func ProfileFromIdc(profileIdc uint8) Profile {
	switch profileIdc {
	case 66, 77, 88, 100, 110, 122, 244, 44, 83, 86, 118, 128, 134, 135, 138, 139:
		return Profile(profileIdc)
	default:
		return ProfileUnknown
	}
}

// hasChromaInfo reports whether SPSes with this profile_idc carry the
// chroma format, bit depth and scaling matrix fields.
func hasChromaInfo(profileIdc uint8) bool {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 134, 135, 138, 139:
		return true
	default:
		return false
	}
}

// Level is the classification derived from level_idc and constraint flag 3
// (which distinguishes level 1b from 1.1).
type Level uint8

// Levels defined by H.264 table A-1. Level1B shares level_idc 11 with
// Level11 and is signalled via constraint_set3_flag.
const (
	Level1   Level = 10
	Level1B  Level = 9
	Level11  Level = 11
	Level12  Level = 12
	Level13  Level = 13
	Level2   Level = 20
	Level21  Level = 21
	Level22  Level = 22
	Level3   Level = 30
	Level31  Level = 31
	Level32  Level = 32
	Level4   Level = 40
	Level41  Level = 41
	Level42  Level = 42
	Level5   Level = 50
	Level51  Level = 51
	Level52  Level = 52
)

// ConstraintFlags is the byte of constraint_setN_flag bits following
// profile_idc.
type ConstraintFlags uint8

func (f ConstraintFlags) Flag0() bool { return f&0x80 != 0 }
func (f ConstraintFlags) Flag1() bool { return f&0x40 != 0 }
func (f ConstraintFlags) Flag2() bool { return f&0x20 != 0 }
func (f ConstraintFlags) Flag3() bool { return f&0x10 != 0 }
func (f ConstraintFlags) Flag4() bool { return f&0x08 != 0 }
func (f ConstraintFlags) Flag5() bool { return f&0x04 != 0 }

// ChromaFormat is the decoded chroma_format_idc.
type ChromaFormat uint8

// Chroma sampling structures, spec table 6-1.
const (
	ChromaMonochrome ChromaFormat = 0
	ChromaYUV420     ChromaFormat = 1
	ChromaYUV422     ChromaFormat = 2
	ChromaYUV444     ChromaFormat = 3
)

const (
	maxBitDepthMinus8         = 6
	maxLog2MaxFrameNumMinus4  = 12
	maxLog2MaxPicOrderCntLsb  = 12
	maxNumRefFramesInPocCycle = 255
	maxCpbCntMinus1           = 31
	scalingList4x4Size        = 16
	scalingList8x8Size        = 64
	scalingList4x4Count       = 6
)

// ScalingList is one decoded 4x4 (16 entry) or 8x8 (64 entry) scaling
// list. Values is empty when the stream selected the default matrix.
type ScalingList struct {
	UseDefault bool
	Values     []uint8
}

func readScalingList(r *bits.Reader, size int) (ScalingList, error) {
	lastScale := int32(8)
	nextScale := int32(8)
	useDefault := false
	values := make([]uint8, 0, size)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta, err := r.ReadSE("delta_scale")
			if err != nil {
				return ScalingList{}, err
			}
			if delta < -128 || delta > 127 { //nolint:mnd
				return ScalingList{}, RangeError{Field: "delta_scale", Value: int64(delta), Min: -128, Max: 127}
			}
			nextScale = (lastScale + delta + 256) % 256 //nolint:mnd
			useDefault = j == 0 && nextScale == 0
		}
		v := nextScale
		if nextScale == 0 {
			v = lastScale
		}
		values = append(values, uint8(v)) //nolint:gosec // v is in 0..255
		lastScale = v
	}
	if useDefault {
		return ScalingList{UseDefault: true}, nil
	}
	return ScalingList{Values: values}, nil
}

// ScalingMatrix holds the transmitted scaling lists; a nil entry means the
// list was not present and fall-back rules apply.
type ScalingMatrix struct {
	List4x4 []*ScalingList
	List8x8 []*ScalingList
}

func readScalingMatrix(r *bits.Reader, count8x8 int) (m ScalingMatrix, err error) {
	m.List4x4 = make([]*ScalingList, scalingList4x4Count)
	m.List8x8 = make([]*ScalingList, count8x8)
	for i := 0; i < scalingList4x4Count+count8x8; i++ {
		present, err := r.ReadFlag("seq_scaling_list_present_flag")
		if err != nil {
			return m, err
		}
		if !present {
			continue
		}
		var list ScalingList
		if i < scalingList4x4Count {
			if list, err = readScalingList(r, scalingList4x4Size); err != nil {
				return m, err
			}
			m.List4x4[i] = &list
		} else {
			if list, err = readScalingList(r, scalingList8x8Size); err != nil {
				return m, err
			}
			m.List8x8[i-scalingList4x4Count] = &list
		}
	}
	return m, nil
}

// ChromaInfo carries the chroma format, bit depth and scaling matrix
// fields present for High-family profiles; other profiles get the
// mandated 4:2:0 8-bit defaults.
type ChromaInfo struct {
	ChromaFormat                 ChromaFormat
	SeparateColourPlaneFlag      bool
	BitDepthLumaMinus8           uint8
	BitDepthChromaMinus8         uint8
	QpprimeYZeroTransformBypass  bool
	ScalingMatrix                *ScalingMatrix
}

// ChromaArrayType derives the variable of the same name from spec 7.4.2.1.1.
func (c ChromaInfo) ChromaArrayType() ChromaFormat {
	if c.SeparateColourPlaneFlag {
		return ChromaMonochrome
	}
	return c.ChromaFormat
}

func readChromaInfo(r *bits.Reader, profileIdc uint8) (info ChromaInfo, err error) {
	if !hasChromaInfo(profileIdc) {
		return ChromaInfo{ChromaFormat: ChromaYUV420}, nil
	}
	idc, err := r.ReadUE("chroma_format_idc")
	if err != nil {
		return info, err
	}
	if idc > uint32(ChromaYUV444) {
		return info, RangeError{Field: "chroma_format_idc", Value: int64(idc), Min: 0, Max: int64(ChromaYUV444)}
	}
	info.ChromaFormat = ChromaFormat(idc)
	if info.ChromaFormat == ChromaYUV444 {
		if info.SeparateColourPlaneFlag, err = r.ReadFlag("separate_colour_plane_flag"); err != nil {
			return info, err
		}
	}
	if info.BitDepthLumaMinus8, err = readBitDepthMinus8(r, "bit_depth_luma_minus8"); err != nil {
		return info, err
	}
	if info.BitDepthChromaMinus8, err = readBitDepthMinus8(r, "bit_depth_chroma_minus8"); err != nil {
		return info, err
	}
	if info.QpprimeYZeroTransformBypass, err = r.ReadFlag("qpprime_y_zero_transform_bypass_flag"); err != nil {
		return info, err
	}
	present, err := r.ReadFlag("seq_scaling_matrix_present_flag")
	if err != nil {
		return info, err
	}
	if present {
		count8x8 := 2
		if info.ChromaFormat == ChromaYUV444 {
			count8x8 = 6
		}
		matrix, err := readScalingMatrix(r, count8x8)
		if err != nil {
			return info, err
		}
		info.ScalingMatrix = &matrix
	}
	return info, nil
}

func readBitDepthMinus8(r *bits.Reader, field string) (uint8, error) {
	v, err := r.ReadUE(field)
	if err != nil {
		return 0, err
	}
	if v > maxBitDepthMinus8 {
		return 0, RangeError{Field: field, Value: int64(v), Min: 0, Max: maxBitDepthMinus8}
	}
	return uint8(v), nil
}

// PicOrderCnt is the pic_order_cnt_type and the fields belonging to the
// selected type (0, 1 or 2).
type PicOrderCnt struct {
	Type                        uint8
	Log2MaxPicOrderCntLsbMinus4 uint8   // type 0
	DeltaPicOrderAlwaysZeroFlag bool    // type 1
	OffsetForNonRefPic          int32   // type 1
	OffsetForTopToBottomField   int32   // type 1
	OffsetsForRefFrame          []int32 // type 1
}

func readPicOrderCnt(r *bits.Reader) (poc PicOrderCnt, err error) {
	typ, err := r.ReadUE("pic_order_cnt_type")
	if err != nil {
		return poc, err
	}
	switch typ {
	case 0:
		poc.Type = 0
		v, err := r.ReadUE("log2_max_pic_order_cnt_lsb_minus4")
		if err != nil {
			return poc, err
		}
		if v > maxLog2MaxPicOrderCntLsb {
			return poc, RangeError{Field: "log2_max_pic_order_cnt_lsb_minus4", Value: int64(v), Min: 0, Max: maxLog2MaxPicOrderCntLsb}
		}
		poc.Log2MaxPicOrderCntLsbMinus4 = uint8(v)
	case 1:
		poc.Type = 1
		if poc.DeltaPicOrderAlwaysZeroFlag, err = r.ReadFlag("delta_pic_order_always_zero_flag"); err != nil {
			return poc, err
		}
		if poc.OffsetForNonRefPic, err = r.ReadSE("offset_for_non_ref_pic"); err != nil {
			return poc, err
		}
		if poc.OffsetForTopToBottomField, err = r.ReadSE("offset_for_top_to_bottom_field"); err != nil {
			return poc, err
		}
		count, err := r.ReadUE("num_ref_frames_in_pic_order_cnt_cycle")
		if err != nil {
			return poc, err
		}
		if count > maxNumRefFramesInPocCycle {
			return poc, RangeError{Field: "num_ref_frames_in_pic_order_cnt_cycle", Value: int64(count), Min: 0, Max: maxNumRefFramesInPocCycle}
		}
		poc.OffsetsForRefFrame = make([]int32, count)
		for i := range poc.OffsetsForRefFrame {
			if poc.OffsetsForRefFrame[i], err = r.ReadSE("offset_for_ref_frame"); err != nil {
				return poc, err
			}
		}
	case 2: //nolint:mnd
		poc.Type = 2
	default:
		return poc, RangeError{Field: "pic_order_cnt_type", Value: int64(typ), Min: 0, Max: 2}
	}
	return poc, nil
}

// FrameMbsFlags carries frame_mbs_only_flag and, for interlace-capable
// streams, mb_adaptive_frame_field_flag.
type FrameMbsFlags struct {
	FrameMbsOnly             bool
	MbAdaptiveFrameFieldFlag bool
}

// FrameCropping is the optional frame_crop_*_offset quadruple, in crop
// units.
type FrameCropping struct {
	LeftOffset   uint32
	RightOffset  uint32
	TopOffset    uint32
	BottomOffset uint32
}

// AspectRatioInfo is the decoded aspect_ratio_idc plus the extended SAR
// dimensions when the idc is 255.
type AspectRatioInfo struct {
	Idc       uint8
	SarWidth  uint16 // extended only
	SarHeight uint16 // extended only
}

const aspectRatioExtended = 255

// sample aspect ratios for aspect_ratio_idc 1..16, spec table E-1
var aspectRatios = [][2]uint16{
	{1, 1}, {12, 11}, {10, 11}, {16, 11}, {40, 33}, {24, 11}, {20, 11}, {32, 11},
	{80, 33}, {18, 11}, {15, 11}, {64, 33}, {160, 99}, {4, 3}, {3, 2}, {2, 1},
}

// Ratio returns the sample aspect ratio as width, height, or ok=false when
// unspecified or reserved.
func (a AspectRatioInfo) Ratio() (w, h uint16, ok bool) {
	switch {
	case a.Idc >= 1 && int(a.Idc) <= len(aspectRatios):
		r := aspectRatios[a.Idc-1]
		return r[0], r[1], true
	case a.Idc == aspectRatioExtended:
		if a.SarWidth == 0 || a.SarHeight == 0 {
			return 0, 0, false
		}
		return a.SarWidth, a.SarHeight, true
	default:
		return 0, 0, false
	}
}

// ColourDescription is the optional colour_primaries triple.
type ColourDescription struct {
	ColourPrimaries         uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
}

// VideoSignalType carries video_format, full-range flag and colour
// description.
type VideoSignalType struct {
	VideoFormat        uint8
	VideoFullRangeFlag bool
	ColourDescription  *ColourDescription
}

// ChromaLocInfo is the optional chroma sample location pair.
type ChromaLocInfo struct {
	SampleLocTypeTopField    uint32
	SampleLocTypeBottomField uint32
}

// TimingInfo is the optional VUI timing description.
type TimingInfo struct {
	NumUnitsInTick     uint32
	TimeScale          uint32
	FixedFrameRateFlag bool
}

// CpbSpec is one coded-picture-buffer description inside HRD parameters.
type CpbSpec struct {
	BitRateValueMinus1 uint32
	CpbSizeValueMinus1 uint32
	CbrFlag            bool
}

// HrdParameters is the hypothetical reference decoder description
// (spec E.1.2).
type HrdParameters struct {
	BitRateScale                      uint8
	CpbSizeScale                      uint8
	CpbSpecs                          []CpbSpec
	InitialCpbRemovalDelayLengthMinus1 uint8
	CpbRemovalDelayLengthMinus1       uint8
	DpbOutputDelayLengthMinus1        uint8
	TimeOffsetLength                  uint8
}

// BitstreamRestrictions is the optional VUI restriction block, including
// max_dec_frame_buffering.
type BitstreamRestrictions struct {
	MotionVectorsOverPicBoundaries bool
	MaxBytesPerPicDenom            uint32
	MaxBitsPerMbDenom              uint32
	Log2MaxMvLengthHorizontal      uint32
	Log2MaxMvLengthVertical        uint32
	MaxNumReorderFrames            uint32
	MaxDecFrameBuffering           uint32
}

// VuiParameters is the optional video usability information block.
type VuiParameters struct {
	AspectRatioInfo       *AspectRatioInfo
	OverscanAppropriate   *bool
	VideoSignalType       *VideoSignalType
	ChromaLocInfo         *ChromaLocInfo
	TimingInfo            *TimingInfo
	NalHrdParameters      *HrdParameters
	VclHrdParameters      *HrdParameters
	LowDelayHrdFlag       *bool
	PicStructPresentFlag  bool
	BitstreamRestrictions *BitstreamRestrictions
}

// SPS is a decoded sequence parameter set. Field names follow their
// specification counterparts. An SPS is immutable once parsed.
type SPS struct {
	ProfileIdc                  uint8
	ConstraintFlags             ConstraintFlags
	LevelIdc                    uint8
	ID                          SPSID
	ChromaInfo                  ChromaInfo
	Log2MaxFrameNumMinus4       uint8
	PicOrderCnt                 PicOrderCnt
	MaxNumRefFrames             uint32
	GapsInFrameNumValueAllowed  bool
	PicWidthInMbsMinus1         uint32
	PicHeightInMapUnitsMinus1   uint32
	FrameMbsFlags               FrameMbsFlags
	Direct8x8InferenceFlag      bool
	FrameCropping               *FrameCropping
	VuiParameters               *VuiParameters
}

// ParseSPS decodes a sequence parameter set from escape-free RBSP bytes,
// validating the trailing bits.
func ParseSPS(rbsp []byte) (*SPS, error) {
	r := bits.NewReader(rbsp)
	sps, err := readSPS(r)
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse SPS failed(%w)", err)
	}
	if err := r.FinishRBSP(); err != nil {
		return nil, fmt.Errorf("h264parser: parse SPS failed(%w)", err)
	}
	return sps, nil
}

// readSPS decodes the seq_parameter_set_data syntax without consuming
// trailing bits, so it can also serve as the prefix of a subset SPS.
func readSPS(r *bits.Reader) (*SPS, error) {
	var sps SPS
	profileIdc, err := r.ReadBits("profile_idc", 8)
	if err != nil {
		return nil, err
	}
	sps.ProfileIdc = uint8(profileIdc)
	flags, err := r.ReadBits("constraint_flags", 8)
	if err != nil {
		return nil, err
	}
	sps.ConstraintFlags = ConstraintFlags(flags)
	levelIdc, err := r.ReadBits("level_idc", 8)
	if err != nil {
		return nil, err
	}
	sps.LevelIdc = uint8(levelIdc)
	if sps.ID, err = readSPSID(r, "seq_parameter_set_id"); err != nil {
		return nil, err
	}
	if sps.ChromaInfo, err = readChromaInfo(r, sps.ProfileIdc); err != nil {
		return nil, err
	}
	log2MaxFrameNum, err := r.ReadUE("log2_max_frame_num_minus4")
	if err != nil {
		return nil, err
	}
	if log2MaxFrameNum > maxLog2MaxFrameNumMinus4 {
		return nil, RangeError{Field: "log2_max_frame_num_minus4", Value: int64(log2MaxFrameNum), Min: 0, Max: maxLog2MaxFrameNumMinus4}
	}
	sps.Log2MaxFrameNumMinus4 = uint8(log2MaxFrameNum)
	if sps.PicOrderCnt, err = readPicOrderCnt(r); err != nil {
		return nil, err
	}
	if sps.MaxNumRefFrames, err = r.ReadUE("max_num_ref_frames"); err != nil {
		return nil, err
	}
	if sps.GapsInFrameNumValueAllowed, err = r.ReadFlag("gaps_in_frame_num_value_allowed_flag"); err != nil {
		return nil, err
	}
	if sps.PicWidthInMbsMinus1, err = r.ReadUE("pic_width_in_mbs_minus1"); err != nil {
		return nil, err
	}
	if sps.PicHeightInMapUnitsMinus1, err = r.ReadUE("pic_height_in_map_units_minus1"); err != nil {
		return nil, err
	}
	if sps.FrameMbsFlags.FrameMbsOnly, err = r.ReadFlag("frame_mbs_only_flag"); err != nil {
		return nil, err
	}
	if !sps.FrameMbsFlags.FrameMbsOnly {
		if sps.FrameMbsFlags.MbAdaptiveFrameFieldFlag, err = r.ReadFlag("mb_adaptive_frame_field_flag"); err != nil {
			return nil, err
		}
	}
	if sps.Direct8x8InferenceFlag, err = r.ReadFlag("direct_8x8_inference_flag"); err != nil {
		return nil, err
	}
	if sps.FrameCropping, err = readFrameCropping(r); err != nil {
		return nil, err
	}
	if sps.VuiParameters, err = readVuiParameters(r); err != nil {
		return nil, err
	}
	return &sps, nil
}

func readSPSID(r *bits.Reader, field string) (SPSID, error) {
	id, err := r.ReadUE(field)
	if err != nil {
		return 0, err
	}
	if id > maxParamSetID {
		return 0, RangeError{Field: field, Value: int64(id), Min: 0, Max: maxParamSetID}
	}
	return SPSID(id), nil
}

func readFrameCropping(r *bits.Reader) (*FrameCropping, error) {
	present, err := r.ReadFlag("frame_cropping_flag")
	if err != nil || !present {
		return nil, err
	}
	var crop FrameCropping
	if crop.LeftOffset, err = r.ReadUE("frame_crop_left_offset"); err != nil {
		return nil, err
	}
	if crop.RightOffset, err = r.ReadUE("frame_crop_right_offset"); err != nil {
		return nil, err
	}
	if crop.TopOffset, err = r.ReadUE("frame_crop_top_offset"); err != nil {
		return nil, err
	}
	if crop.BottomOffset, err = r.ReadUE("frame_crop_bottom_offset"); err != nil {
		return nil, err
	}
	return &crop, nil
}

func readAspectRatioInfo(r *bits.Reader) (*AspectRatioInfo, error) {
	present, err := r.ReadFlag("aspect_ratio_info_present_flag")
	if err != nil || !present {
		return nil, err
	}
	var info AspectRatioInfo
	idc, err := r.ReadBits("aspect_ratio_idc", 8)
	if err != nil {
		return nil, err
	}
	info.Idc = uint8(idc)
	if info.Idc == aspectRatioExtended {
		w, err := r.ReadBits("sar_width", 16)
		if err != nil {
			return nil, err
		}
		h, err := r.ReadBits("sar_height", 16)
		if err != nil {
			return nil, err
		}
		info.SarWidth = uint16(w)
		info.SarHeight = uint16(h)
	}
	return &info, nil
}

func readVideoSignalType(r *bits.Reader) (*VideoSignalType, error) {
	present, err := r.ReadFlag("video_signal_type_present_flag")
	if err != nil || !present {
		return nil, err
	}
	var vst VideoSignalType
	format, err := r.ReadBits("video_format", 3)
	if err != nil {
		return nil, err
	}
	vst.VideoFormat = uint8(format)
	if vst.VideoFullRangeFlag, err = r.ReadFlag("video_full_range_flag"); err != nil {
		return nil, err
	}
	colourPresent, err := r.ReadFlag("colour_description_present_flag")
	if err != nil {
		return nil, err
	}
	if colourPresent {
		var cd ColourDescription
		p, err := r.ReadBits("colour_primaries", 8)
		if err != nil {
			return nil, err
		}
		t, err := r.ReadBits("transfer_characteristics", 8)
		if err != nil {
			return nil, err
		}
		m, err := r.ReadBits("matrix_coefficients", 8)
		if err != nil {
			return nil, err
		}
		cd = ColourDescription{ColourPrimaries: uint8(p), TransferCharacteristics: uint8(t), MatrixCoefficients: uint8(m)}
		vst.ColourDescription = &cd
	}
	return &vst, nil
}

func readHrdParameters(r *bits.Reader) (*HrdParameters, error) {
	present, err := r.ReadFlag("hrd_parameters_present_flag")
	if err != nil || !present {
		return nil, err
	}
	cpbCntMinus1, err := r.ReadUE("cpb_cnt_minus1")
	if err != nil {
		return nil, err
	}
	if cpbCntMinus1 > maxCpbCntMinus1 {
		return nil, RangeError{Field: "cpb_cnt_minus1", Value: int64(cpbCntMinus1), Min: 0, Max: maxCpbCntMinus1}
	}
	var hrd HrdParameters
	scale, err := r.ReadBits("bit_rate_scale", 4)
	if err != nil {
		return nil, err
	}
	hrd.BitRateScale = uint8(scale)
	if scale, err = r.ReadBits("cpb_size_scale", 4); err != nil {
		return nil, err
	}
	hrd.CpbSizeScale = uint8(scale)
	hrd.CpbSpecs = make([]CpbSpec, cpbCntMinus1+1)
	for i := range hrd.CpbSpecs {
		if hrd.CpbSpecs[i].BitRateValueMinus1, err = r.ReadUE("bit_rate_value_minus1"); err != nil {
			return nil, err
		}
		if hrd.CpbSpecs[i].CpbSizeValueMinus1, err = r.ReadUE("cpb_size_value_minus1"); err != nil {
			return nil, err
		}
		if hrd.CpbSpecs[i].CbrFlag, err = r.ReadFlag("cbr_flag"); err != nil {
			return nil, err
		}
	}
	lengths := []struct {
		field string
		dst   *uint8
	}{
		{"initial_cpb_removal_delay_length_minus1", &hrd.InitialCpbRemovalDelayLengthMinus1},
		{"cpb_removal_delay_length_minus1", &hrd.CpbRemovalDelayLengthMinus1},
		{"dpb_output_delay_length_minus1", &hrd.DpbOutputDelayLengthMinus1},
		{"time_offset_length", &hrd.TimeOffsetLength},
	}
	for _, l := range lengths {
		v, err := r.ReadBits(l.field, 5)
		if err != nil {
			return nil, err
		}
		*l.dst = uint8(v)
	}
	return &hrd, nil
}

func readVuiParameters(r *bits.Reader) (*VuiParameters, error) {
	present, err := r.ReadFlag("vui_parameters_present_flag")
	if err != nil || !present {
		return nil, err
	}
	var vui VuiParameters
	if vui.AspectRatioInfo, err = readAspectRatioInfo(r); err != nil {
		return nil, err
	}
	overscanPresent, err := r.ReadFlag("overscan_info_present_flag")
	if err != nil {
		return nil, err
	}
	if overscanPresent {
		appropriate, err := r.ReadFlag("overscan_appropriate_flag")
		if err != nil {
			return nil, err
		}
		vui.OverscanAppropriate = &appropriate
	}
	if vui.VideoSignalType, err = readVideoSignalType(r); err != nil {
		return nil, err
	}
	chromaLocPresent, err := r.ReadFlag("chroma_loc_info_present_flag")
	if err != nil {
		return nil, err
	}
	if chromaLocPresent {
		var loc ChromaLocInfo
		if loc.SampleLocTypeTopField, err = r.ReadUE("chroma_sample_loc_type_top_field"); err != nil {
			return nil, err
		}
		if loc.SampleLocTypeBottomField, err = r.ReadUE("chroma_sample_loc_type_bottom_field"); err != nil {
			return nil, err
		}
		vui.ChromaLocInfo = &loc
	}
	timingPresent, err := r.ReadFlag("timing_info_present_flag")
	if err != nil {
		return nil, err
	}
	if timingPresent {
		var ti TimingInfo
		units, err := r.ReadBits("num_units_in_tick", 32)
		if err != nil {
			return nil, err
		}
		scale, err := r.ReadBits("time_scale", 32)
		if err != nil {
			return nil, err
		}
		ti.NumUnitsInTick = units
		ti.TimeScale = scale
		if ti.FixedFrameRateFlag, err = r.ReadFlag("fixed_frame_rate_flag"); err != nil {
			return nil, err
		}
		vui.TimingInfo = &ti
	}
	if vui.NalHrdParameters, err = readHrdParameters(r); err != nil {
		return nil, err
	}
	if vui.VclHrdParameters, err = readHrdParameters(r); err != nil {
		return nil, err
	}
	if vui.NalHrdParameters != nil || vui.VclHrdParameters != nil {
		lowDelay, err := r.ReadFlag("low_delay_hrd_flag")
		if err != nil {
			return nil, err
		}
		vui.LowDelayHrdFlag = &lowDelay
	}
	if vui.PicStructPresentFlag, err = r.ReadFlag("pic_struct_present_flag"); err != nil {
		return nil, err
	}
	restrictionPresent, err := r.ReadFlag("bitstream_restriction_flag")
	if err != nil {
		return nil, err
	}
	if restrictionPresent {
		var br BitstreamRestrictions
		if br.MotionVectorsOverPicBoundaries, err = r.ReadFlag("motion_vectors_over_pic_boundaries_flag"); err != nil {
			return nil, err
		}
		if br.MaxBytesPerPicDenom, err = r.ReadUE("max_bytes_per_pic_denom"); err != nil {
			return nil, err
		}
		if br.MaxBitsPerMbDenom, err = r.ReadUE("max_bits_per_mb_denom"); err != nil {
			return nil, err
		}
		if br.Log2MaxMvLengthHorizontal, err = r.ReadUE("log2_max_mv_length_horizontal"); err != nil {
			return nil, err
		}
		if br.Log2MaxMvLengthVertical, err = r.ReadUE("log2_max_mv_length_vertical"); err != nil {
			return nil, err
		}
		if br.MaxNumReorderFrames, err = r.ReadUE("max_num_reorder_frames"); err != nil {
			return nil, err
		}
		if br.MaxDecFrameBuffering, err = r.ReadUE("max_dec_frame_buffering"); err != nil {
			return nil, err
		}
		vui.BitstreamRestrictions = &br
	}
	return &vui, nil
}

// Profile returns the classification of profile_idc.
func (s *SPS) Profile() Profile {
	return ProfileFromIdc(s.ProfileIdc)
}

// Level returns the level classification, distinguishing 1b from 1.1 via
// constraint flag 3.
func (s *SPS) Level() Level {
	if s.LevelIdc == uint8(Level11) && s.ConstraintFlags.Flag3() {
		return Level1B
	}
	return Level(s.LevelIdc)
}

// Log2MaxFrameNum returns the bit width of the frame_num slice-header
// field, in the range 4..16.
func (s *SPS) Log2MaxFrameNum() uint8 {
	return s.Log2MaxFrameNumMinus4 + 4
}

const mbSize = 16

// PixelDimensions derives the picture width and height in pixels,
// accounting for sample format, interlacing and cropping. Arithmetic is
// overflow-checked so hostile field values cannot wrap.
func (s *SPS) PixelDimensions() (width, height uint32, err error) {
	w := (uint64(s.PicWidthInMbsMinus1) + 1) * mbSize
	mul := uint64(1)
	if !s.FrameMbsFlags.FrameMbsOnly {
		mul = 2
	}
	h := (uint64(s.PicHeightInMapUnitsMinus1) + 1) * mul * mbSize
	if w > uint64(^uint32(0)) {
		return 0, 0, RangeError{Field: "pic_width_in_mbs_minus1", Value: int64(s.PicWidthInMbsMinus1), Min: 0, Max: int64(^uint32(0)/mbSize) - 1}
	}
	if h > uint64(^uint32(0)) {
		return 0, 0, RangeError{Field: "pic_height_in_map_units_minus1", Value: int64(s.PicHeightInMapUnitsMinus1), Min: 0, Max: int64(^uint32(0)/(mbSize*2)) - 1}
	}
	if crop := s.FrameCropping; crop != nil {
		var hsub, vsub uint64
		if s.ChromaInfo.ChromaFormat == ChromaYUV420 || s.ChromaInfo.ChromaFormat == ChromaYUV422 {
			hsub = 1
		}
		if s.ChromaInfo.ChromaFormat == ChromaYUV420 {
			vsub = 1
		}
		stepX := uint64(1) << hsub
		stepY := mul << vsub
		cropX := (uint64(crop.LeftOffset) + uint64(crop.RightOffset)) * stepX
		cropY := (uint64(crop.TopOffset) + uint64(crop.BottomOffset)) * stepY
		if cropX >= w || cropY >= h {
			return 0, 0, RangeError{Field: "frame_cropping", Value: int64(cropX), Min: 0, Max: int64(w - 1)}
		}
		w -= cropX
		h -= cropY
	}
	return uint32(w), uint32(h), nil
}

// FrameRate derives frames per second from VUI timing info, or ok=false
// when the SPS carries none.
func (s *SPS) FrameRate() (fps float64, ok bool) {
	if s.VuiParameters == nil || s.VuiParameters.TimingInfo == nil {
		return 0, false
	}
	ti := s.VuiParameters.TimingInfo
	if ti.NumUnitsInTick == 0 {
		return 0, false
	}
	// A frame spans two field ticks.
	return float64(ti.TimeScale) / (2 * float64(ti.NumUnitsInTick)), true
}
