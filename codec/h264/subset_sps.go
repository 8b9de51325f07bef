package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
)

const (
	maxViewID             = 1023
	maxNumViewsMinus1     = 1023
	maxNumAnchorRefs      = 15
	maxNumLevelValues     = 63
	maxNumApplicableOps   = 1023
	temporalIDBits        = 3
	chromaPhaseBits       = 2
	spatialScalabilityIdc = 2
)

// SvcSPSExtension is a decoded seq_parameter_set_svc_extension
// (spec F.7.3.2.1.4).
type SvcSPSExtension struct {
	InterLayerDeblockingFilterControlPresentFlag bool
	ExtendedSpatialScalabilityIdc                uint8
	ChromaPhaseXPlus1Flag                        bool
	ChromaPhaseYPlus1                            uint8
	SeqRefLayerChromaPhaseXPlus1Flag             bool
	SeqRefLayerChromaPhaseYPlus1                 uint8
	SeqScaledRefLayerLeftOffset                  int32
	SeqScaledRefLayerTopOffset                   int32
	SeqScaledRefLayerRightOffset                 int32
	SeqScaledRefLayerBottomOffset                int32
	SeqTcoeffLevelPredictionFlag                 bool
	AdaptiveTcoeffLevelPredictionFlag            bool
	SliceHeaderRestrictionFlag                   bool
	SvcVuiParametersPresentFlag                  bool
}

// MvcView is one view entry of the MVC SPS extension together with its
// anchor and non-anchor inter-view reference lists. The lists of view 0
// are always empty.
type MvcView struct {
	ViewID          uint16
	AnchorRefsL0    []uint16
	AnchorRefsL1    []uint16
	NonAnchorRefsL0 []uint16
	NonAnchorRefsL1 []uint16
}

// MvcApplicableOp is one applicable operation point of an MVC level value.
type MvcApplicableOp struct {
	TemporalID           uint8
	NumTargetViewsMinus1 uint16
	TargetViewIDs        []uint16
	NumViewsMinus1       uint16
}

// MvcLevelValue is one signalled level with its applicable operation
// points.
type MvcLevelValue struct {
	LevelIdc      uint8
	ApplicableOps []MvcApplicableOp
}

// MvcSPSExtension is a decoded seq_parameter_set_mvc_extension
// (spec G.7.3.2.1.4).
type MvcSPSExtension struct {
	Views       []MvcView
	LevelValues []MvcLevelValue
}

// SubsetSPS is a decoded subset_seq_parameter_set_rbsp (unit type 15,
// spec 7.3.2.1.3): a plain SPS plus the profile-dependent extension.
// At most one of Svc and Mvc is set; both are nil for profiles without
// a subset extension and for the MVCD profiles, whose extension is
// retained unparsed. When a VUI parameters extension follows the parsed
// fields it is retained unparsed and trailing-bits validation is
// skipped.
type SubsetSPS struct {
	SPS                      SPS
	Svc                      *SvcSPSExtension
	Mvc                      *MvcSPSExtension
	MvcVuiParametersPresent  bool
	AdditionalExtension2Flag bool
}

// ParseSubsetSPS decodes a subset SPS from escape-free RBSP bytes.
func ParseSubsetSPS(rbsp []byte) (*SubsetSPS, error) {
	sub, err := parseSubsetSPS(bits.NewReader(rbsp))
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse subset SPS failed(%w)", err)
	}
	return sub, nil
}

func parseSubsetSPS(r *bits.Reader) (*SubsetSPS, error) {
	sps, err := readSPS(r)
	if err != nil {
		return nil, err
	}
	sub := SubsetSPS{SPS: *sps}

	unparsedVui := false
	switch Profile(sps.ProfileIdc) {
	case ProfileScalableBase, ProfileScalableHigh:
		if _, err := r.ReadFlag("bit_equal_to_one"); err != nil {
			return nil, err
		}
		if sub.Svc, err = readSvcSPSExtension(r, sps); err != nil {
			return nil, err
		}
		unparsedVui = sub.Svc.SvcVuiParametersPresentFlag
	case ProfileMultiviewHigh, ProfileStereoHigh, ProfileMFCHigh:
		if _, err := r.ReadFlag("bit_equal_to_one"); err != nil {
			return nil, err
		}
		if sub.Mvc, err = readMvcSPSExtension(r); err != nil {
			return nil, err
		}
		if sub.MvcVuiParametersPresent, err = r.ReadFlag("mvc_vui_parameters_present_flag"); err != nil {
			return nil, err
		}
		unparsedVui = sub.MvcVuiParametersPresent
	case ProfileMFCDepthHigh, ProfileMultiviewDepthHigh, ProfileEnhancedMultiviewDepth:
		if _, err := r.ReadFlag("bit_equal_to_one"); err != nil {
			return nil, err
		}
		// MVCD extension retained unparsed.
		unparsedVui = true
	}

	if !unparsedVui {
		if sub.AdditionalExtension2Flag, err = r.ReadFlag("additional_extension2_flag"); err != nil {
			return nil, err
		}
		if err := r.FinishRBSP(); err != nil {
			return nil, err
		}
	}
	return &sub, nil
}

func readSvcSPSExtension(r *bits.Reader, sps *SPS) (*SvcSPSExtension, error) {
	var ext SvcSPSExtension
	var err error
	if ext.InterLayerDeblockingFilterControlPresentFlag, err = r.ReadFlag("inter_layer_deblocking_filter_control_present_flag"); err != nil {
		return nil, err
	}
	idc, err := r.ReadBits("extended_spatial_scalability_idc", spatialScalabilityIdc)
	if err != nil {
		return nil, err
	}
	ext.ExtendedSpatialScalabilityIdc = uint8(idc)

	chromaArrayType := sps.ChromaInfo.ChromaArrayType()
	if ext.ChromaPhaseXPlus1Flag, err = readChromaPhaseX(r, chromaArrayType, "chroma_phase_x_plus1_flag"); err != nil {
		return nil, err
	}
	if ext.ChromaPhaseYPlus1, err = readChromaPhaseY(r, chromaArrayType, "chroma_phase_y_plus1"); err != nil {
		return nil, err
	}

	if ext.ExtendedSpatialScalabilityIdc == 1 {
		if ext.SeqRefLayerChromaPhaseXPlus1Flag, err = readChromaPhaseX(r, chromaArrayType, "seq_ref_layer_chroma_phase_x_plus1_flag"); err != nil {
			return nil, err
		}
		if ext.SeqRefLayerChromaPhaseYPlus1, err = readChromaPhaseY(r, chromaArrayType, "seq_ref_layer_chroma_phase_y_plus1"); err != nil {
			return nil, err
		}
		if ext.SeqScaledRefLayerLeftOffset, err = r.ReadSE("seq_scaled_ref_layer_left_offset"); err != nil {
			return nil, err
		}
		if ext.SeqScaledRefLayerTopOffset, err = r.ReadSE("seq_scaled_ref_layer_top_offset"); err != nil {
			return nil, err
		}
		if ext.SeqScaledRefLayerRightOffset, err = r.ReadSE("seq_scaled_ref_layer_right_offset"); err != nil {
			return nil, err
		}
		if ext.SeqScaledRefLayerBottomOffset, err = r.ReadSE("seq_scaled_ref_layer_bottom_offset"); err != nil {
			return nil, err
		}
	} else {
		ext.SeqRefLayerChromaPhaseYPlus1 = defaultChromaPhaseY(chromaArrayType)
	}

	if ext.SeqTcoeffLevelPredictionFlag, err = r.ReadFlag("seq_tcoeff_level_prediction_flag"); err != nil {
		return nil, err
	}
	if ext.SeqTcoeffLevelPredictionFlag {
		if ext.AdaptiveTcoeffLevelPredictionFlag, err = r.ReadFlag("adaptive_tcoeff_level_prediction_flag"); err != nil {
			return nil, err
		}
	}
	if ext.SliceHeaderRestrictionFlag, err = r.ReadFlag("slice_header_restriction_flag"); err != nil {
		return nil, err
	}
	if ext.SvcVuiParametersPresentFlag, err = r.ReadFlag("svc_vui_parameters_present_flag"); err != nil {
		return nil, err
	}
	return &ext, nil
}

func readChromaPhaseX(r *bits.Reader, chromaArrayType ChromaFormat, field string) (bool, error) {
	if chromaArrayType == ChromaYUV420 || chromaArrayType == ChromaYUV422 {
		return r.ReadFlag(field)
	}
	return false, nil
}

func readChromaPhaseY(r *bits.Reader, chromaArrayType ChromaFormat, field string) (uint8, error) {
	if chromaArrayType == ChromaYUV420 {
		v, err := r.ReadBits(field, chromaPhaseBits)
		return uint8(v), err
	}
	return defaultChromaPhaseY(chromaArrayType), nil
}

func defaultChromaPhaseY(chromaArrayType ChromaFormat) uint8 {
	if chromaArrayType == ChromaMonochrome {
		return 0
	}
	return 1
}

func readBoundedUE(r *bits.Reader, field string, max uint32) (uint16, error) {
	v, err := r.ReadUE(field)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, RangeError{Field: field, Value: int64(v), Min: 0, Max: int64(max)}
	}
	return uint16(v), nil
}

func readRefList(r *bits.Reader, countField, refField string) ([]uint16, error) {
	count, err := readBoundedUE(r, countField, maxNumAnchorRefs)
	if err != nil {
		return nil, err
	}
	refs := make([]uint16, count)
	for i := range refs {
		if refs[i], err = readBoundedUE(r, refField, maxViewID); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func readMvcSPSExtension(r *bits.Reader) (*MvcSPSExtension, error) {
	numViewsMinus1, err := readBoundedUE(r, "num_views_minus1", maxNumViewsMinus1)
	if err != nil {
		return nil, err
	}
	views := make([]MvcView, numViewsMinus1+1)
	for i := range views {
		if views[i].ViewID, err = readBoundedUE(r, "view_id", maxViewID); err != nil {
			return nil, err
		}
	}
	for i := 1; i < len(views); i++ {
		if views[i].AnchorRefsL0, err = readRefList(r, "num_anchor_refs_l0", "anchor_ref_l0"); err != nil {
			return nil, err
		}
		if views[i].AnchorRefsL1, err = readRefList(r, "num_anchor_refs_l1", "anchor_ref_l1"); err != nil {
			return nil, err
		}
	}
	for i := 1; i < len(views); i++ {
		if views[i].NonAnchorRefsL0, err = readRefList(r, "num_non_anchor_refs_l0", "non_anchor_ref_l0"); err != nil {
			return nil, err
		}
		if views[i].NonAnchorRefsL1, err = readRefList(r, "num_non_anchor_refs_l1", "non_anchor_ref_l1"); err != nil {
			return nil, err
		}
	}

	numLevelValuesMinus1, err := readBoundedUE(r, "num_level_values_signalled_minus1", maxNumLevelValues)
	if err != nil {
		return nil, err
	}
	levels := make([]MvcLevelValue, numLevelValuesMinus1+1)
	for i := range levels {
		idc, err := r.ReadBits("level_idc", byteSize)
		if err != nil {
			return nil, err
		}
		levels[i].LevelIdc = uint8(idc)
		numOpsMinus1, err := readBoundedUE(r, "num_applicable_ops_minus1", maxNumApplicableOps)
		if err != nil {
			return nil, err
		}
		ops := make([]MvcApplicableOp, numOpsMinus1+1)
		for j := range ops {
			tid, err := r.ReadBits("applicable_op_temporal_id", temporalIDBits)
			if err != nil {
				return nil, err
			}
			ops[j].TemporalID = uint8(tid)
			if ops[j].NumTargetViewsMinus1, err = readBoundedUE(r, "applicable_op_num_target_views_minus1", maxViewID); err != nil {
				return nil, err
			}
			ops[j].TargetViewIDs = make([]uint16, ops[j].NumTargetViewsMinus1+1)
			for k := range ops[j].TargetViewIDs {
				if ops[j].TargetViewIDs[k], err = readBoundedUE(r, "applicable_op_target_view_id", maxViewID); err != nil {
					return nil, err
				}
			}
			if ops[j].NumViewsMinus1, err = readBoundedUE(r, "applicable_op_num_views_minus1", maxViewID); err != nil {
				return nil, err
			}
		}
		levels[i].ApplicableOps = ops
	}
	return &MvcSPSExtension{Views: views, LevelValues: levels}, nil
}
