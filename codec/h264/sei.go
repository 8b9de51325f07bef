package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
)

// SEIPayloadType identifies an SEI message, spec annex D.
type SEIPayloadType uint32

// SEI payload types, spec table D-1.
const (
	SEIBufferingPeriod                       SEIPayloadType = 0
	SEIPicTiming                             SEIPayloadType = 1
	SEIPanScanRect                           SEIPayloadType = 2
	SEIFillerPayload                         SEIPayloadType = 3
	SEIUserDataRegisteredItuTT35             SEIPayloadType = 4
	SEIUserDataUnregistered                  SEIPayloadType = 5
	SEIRecoveryPoint                         SEIPayloadType = 6
	SEIDecRefPicMarkingRepetition            SEIPayloadType = 7
	SEISparePic                              SEIPayloadType = 8
	SEISceneInfo                             SEIPayloadType = 9
	SEISubSeqInfo                            SEIPayloadType = 10
	SEISubSeqLayerCharacteristics            SEIPayloadType = 11
	SEISubSeqCharacteristics                 SEIPayloadType = 12
	SEIFullFrameFreeze                       SEIPayloadType = 13
	SEIFullFrameFreezeRelease                SEIPayloadType = 14
	SEIFullFrameSnapshot                     SEIPayloadType = 15
	SEIProgressiveRefinementSegmentStart     SEIPayloadType = 16
	SEIProgressiveRefinementSegmentEnd       SEIPayloadType = 17
	SEIMotionConstrainedSliceGroupSet        SEIPayloadType = 18
	SEIFilmGrainCharacteristics              SEIPayloadType = 19
	SEIDeblockingFilterDisplayPreference     SEIPayloadType = 20
	SEIStereoVideoInfo                       SEIPayloadType = 21
	SEIPostFilterHint                        SEIPayloadType = 22
	SEIToneMappingInfo                       SEIPayloadType = 23
	SEIScalabilityInfo                       SEIPayloadType = 24
	SEISubPicScalableLayer                   SEIPayloadType = 25
	SEINonRequiredLayerRep                   SEIPayloadType = 26
	SEIPriorityLayerInfo                     SEIPayloadType = 27
	SEILayersNotPresent                      SEIPayloadType = 28
	SEILayerDependencyChange                 SEIPayloadType = 29
	SEIScalableNesting                       SEIPayloadType = 30
	SEIBaseLayerTemporalHrd                  SEIPayloadType = 31
	SEIQualityLayerIntegrityCheck            SEIPayloadType = 32
	SEIRedundantPicProperty                  SEIPayloadType = 33
	SEITl0DepRepIndex                        SEIPayloadType = 34
	SEITlSwitchingPoint                      SEIPayloadType = 35
	SEIParallelDecodingInfo                  SEIPayloadType = 36
	SEIMvcScalableNesting                    SEIPayloadType = 37
	SEIViewScalabilityInfo                   SEIPayloadType = 38
	SEIMultiviewSceneInfo                    SEIPayloadType = 39
	SEIMultiviewAcquisitionInfo              SEIPayloadType = 40
	SEINonRequiredViewComponent              SEIPayloadType = 41
	SEIViewDependencyChange                  SEIPayloadType = 42
	SEIOperationPointsNotPresent             SEIPayloadType = 43
	SEIBaseViewTemporalHrd                   SEIPayloadType = 44
	SEIFramePackingArrangement               SEIPayloadType = 45
	SEIMultiviewViewPosition                 SEIPayloadType = 46
	SEIDisplayOrientation                    SEIPayloadType = 47
	SEIMvcdScalableNesting                   SEIPayloadType = 48
	SEIMvcdViewScalabilityInfo               SEIPayloadType = 49
	SEIDepthRepresentationInfo               SEIPayloadType = 50
	SEIThreeDimensionalReferenceDisplays     SEIPayloadType = 51
	SEIDepthTiming                           SEIPayloadType = 52
	SEIDepthSamplingInfo                     SEIPayloadType = 53
	SEIConstrainedDepthParameterSetID        SEIPayloadType = 54
	SEIGreenMetadata                         SEIPayloadType = 56
	SEIMasteringDisplayColourVolume          SEIPayloadType = 137
	SEIColourRemappingInfo                   SEIPayloadType = 142
	SEIAlternativeTransferCharacteristics    SEIPayloadType = 147
	SEIAlternativeDepthInfo                  SEIPayloadType = 188
)

var seiPayloadTypeNames = map[SEIPayloadType]string{
	SEIBufferingPeriod:                    "buffering_period",
	SEIPicTiming:                          "pic_timing",
	SEIPanScanRect:                        "pan_scan_rect",
	SEIFillerPayload:                      "filler_payload",
	SEIUserDataRegisteredItuTT35:          "user_data_registered_itu_t_t35",
	SEIUserDataUnregistered:               "user_data_unregistered",
	SEIRecoveryPoint:                      "recovery_point",
	SEIDecRefPicMarkingRepetition:         "dec_ref_pic_marking_repetition",
	SEISparePic:                           "spare_pic",
	SEISceneInfo:                          "scene_info",
	SEIFilmGrainCharacteristics:           "film_grain_characteristics",
	SEIStereoVideoInfo:                    "stereo_video_info",
	SEIToneMappingInfo:                    "tone_mapping_info",
	SEIScalableNesting:                    "scalable_nesting",
	SEIMvcScalableNesting:                 "mvc_scalable_nesting",
	SEIFramePackingArrangement:            "frame_packing_arrangement",
	SEIDisplayOrientation:                 "display_orientation",
	SEIMasteringDisplayColourVolume:       "mastering_display_colour_volume",
	SEIColourRemappingInfo:                "colour_remapping_info",
	SEIAlternativeTransferCharacteristics: "alternative_transfer_characteristics",
}

func (t SEIPayloadType) String() string {
	if name, ok := seiPayloadTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("reserved_sei_message(%d)", uint32(t))
}

// SEIMessage is one message from an SEI NAL unit. Data borrows from the
// RBSP passed to ParseSEI and is not interpreted further.
type SEIMessage struct {
	Type SEIPayloadType
	Data []byte
}

const (
	seiExtendByte = 0xff
	stopBitByte   = 0x80
	byteSize      = 8
)

// ParseSEI splits an SEI RBSP into its messages. Payload type and size
// use the annex D extension coding where each 0xff byte adds 255 to the
// value. Payload contents are returned as raw byte slices; interpreting
// them is up to the caller.
func ParseSEI(rbsp []byte) ([]SEIMessage, error) {
	msgs, err := parseSEI(rbsp)
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse SEI failed(%w)", err)
	}
	return msgs, nil
}

func parseSEI(rbsp []byte) ([]SEIMessage, error) {
	end := len(rbsp)
	for end > 0 && rbsp[end-1] == 0 {
		end--
	}
	if end == 0 {
		return nil, bits.TruncatedError{Field: "sei_payload_type", Bits: byteSize}
	}
	if rbsp[end-1] != stopBitByte {
		return nil, bits.TrailingBitsError{Reason: "rbsp_trailing_bits missing after SEI messages"}
	}
	body := rbsp[:end-1]

	var msgs []SEIMessage
	for i := 0; i < len(body); {
		var msg SEIMessage
		v, n, err := readSEIValue(body[i:], "sei_payload_type")
		if err != nil {
			return nil, err
		}
		msg.Type = SEIPayloadType(v)
		i += n
		size, n, err := readSEIValue(body[i:], "sei_payload_size")
		if err != nil {
			return nil, err
		}
		i += n
		if uint32(len(body)-i) < size {
			return nil, bits.TruncatedError{Field: "sei_payload", Bits: uint(size-uint32(len(body)-i)) * byteSize}
		}
		msg.Data = body[i : i+int(size)]
		i += int(size)
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func readSEIValue(b []byte, field string) (v uint32, n int, err error) {
	for {
		if n == len(b) {
			return 0, 0, bits.TruncatedError{Field: field, Bits: byteSize}
		}
		v += uint32(b[n])
		n++
		if b[n-1] != seiExtendByte {
			return v, n, nil
		}
	}
}
