package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
)

const (
	maxBitDepthAuxMinus8 = 4
	alphaValueExtraBits  = 9
)

// AuxFormatInfo describes the auxiliary coded picture format, present in
// an SPS extension when aux_format_idc is nonzero.
type AuxFormatInfo struct {
	BitDepthAuxMinus8     uint8
	AlphaIncrFlag         bool
	AlphaOpaqueValue      uint32
	AlphaTransparentValue uint32
}

// SPSExtension is a decoded seq_parameter_set_extension_rbsp (unit
// type 13, spec 7.3.2.1.2). AuxFormatInfo is nil when aux_format_idc
// is zero.
type SPSExtension struct {
	ID                      SPSID
	AuxFormatIdc            uint32
	AuxFormatInfo           *AuxFormatInfo
	AdditionalExtensionFlag bool
}

// ParseSPSExtension decodes an SPS extension from escape-free RBSP bytes.
func ParseSPSExtension(rbsp []byte) (*SPSExtension, error) {
	ext, err := parseSPSExtension(bits.NewReader(rbsp))
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse SPS extension failed(%w)", err)
	}
	return ext, nil
}

func parseSPSExtension(r *bits.Reader) (*SPSExtension, error) {
	var ext SPSExtension
	var err error
	if ext.ID, err = readSPSID(r, "seq_parameter_set_id"); err != nil {
		return nil, err
	}
	if ext.AuxFormatIdc, err = r.ReadUE("aux_format_idc"); err != nil {
		return nil, err
	}
	if ext.AuxFormatIdc != 0 {
		var info AuxFormatInfo
		depth, err := r.ReadUE("bit_depth_aux_minus8")
		if err != nil {
			return nil, err
		}
		if depth > maxBitDepthAuxMinus8 {
			return nil, RangeError{Field: "bit_depth_aux_minus8", Value: int64(depth), Min: 0, Max: maxBitDepthAuxMinus8}
		}
		info.BitDepthAuxMinus8 = uint8(depth)
		if info.AlphaIncrFlag, err = r.ReadFlag("alpha_incr_flag"); err != nil {
			return nil, err
		}
		alphaBits := uint(info.BitDepthAuxMinus8) + alphaValueExtraBits
		if info.AlphaOpaqueValue, err = r.ReadBits("alpha_opaque_value", alphaBits); err != nil {
			return nil, err
		}
		if info.AlphaTransparentValue, err = r.ReadBits("alpha_transparent_value", alphaBits); err != nil {
			return nil, err
		}
		ext.AuxFormatInfo = &info
	}
	if ext.AdditionalExtensionFlag, err = r.ReadFlag("additional_extension_flag"); err != nil {
		return nil, err
	}
	if err := r.FinishRBSP(); err != nil {
		return nil, err
	}
	return &ext, nil
}
