// Package h264 decodes the structural metadata of H.264 elementary streams
// without touching pixel data: NAL unit headers and the typed syntax of
// SPS, PPS, slice headers, SEI envelopes, access-unit delimiters, SPS
// extensions, subset SPS and prefix NAL units, with a caller-owned Context
// resolving cross-unit parameter-set references.
package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/nal"
)

// UnitType is the 5-bit nal_unit_type discriminant.
type UnitType uint8

// NAL unit types defined by the H.264 spec, table 7-1.
const (
	UnitUnspecified         UnitType = 0
	UnitSliceNonIdr         UnitType = 1
	UnitSlicePartitionA     UnitType = 2
	UnitSlicePartitionB     UnitType = 3
	UnitSlicePartitionC     UnitType = 4
	UnitSliceIdr            UnitType = 5
	UnitSEI                 UnitType = 6
	UnitSeqParamSet         UnitType = 7
	UnitPicParamSet         UnitType = 8
	UnitAccessUnitDelimiter UnitType = 9
	UnitEndOfSeq            UnitType = 10
	UnitEndOfStream         UnitType = 11
	UnitFillerData          UnitType = 12
	UnitSeqParamSetExt      UnitType = 13
	UnitPrefix              UnitType = 14
	UnitSubsetSeqParamSet   UnitType = 15
	UnitDepthParamSet       UnitType = 16
	UnitSliceAux            UnitType = 19
	UnitSliceExtension      UnitType = 20
	UnitSliceExtensionDepth UnitType = 21
)

const maxUnitType = 31

// IsReserved reports whether the type is reserved for future use (17, 18,
// 22, 23).
func (t UnitType) IsReserved() bool {
	return t == 17 || t == 18 || t == 22 || t == 23 //nolint:mnd
}

// IsUnspecified reports whether the type is left unspecified by the
// standard (0 and 24..31).
func (t UnitType) IsUnspecified() bool {
	return t == UnitUnspecified || (t >= 24 && t <= maxUnitType) //nolint:mnd
}

// HasExtensionHeader reports whether units of this type carry the 3-byte
// SVC/MVC header extension after the 1-byte header.
func (t UnitType) HasExtensionHeader() bool {
	return t == UnitPrefix || t == UnitSliceExtension || t == UnitSliceExtensionDepth
}

func (t UnitType) String() string {
	switch t {
	case UnitSliceNonIdr:
		return "non-IDR slice"
	case UnitSlicePartitionA:
		return "slice data partition A"
	case UnitSlicePartitionB:
		return "slice data partition B"
	case UnitSlicePartitionC:
		return "slice data partition C"
	case UnitSliceIdr:
		return "IDR slice"
	case UnitSEI:
		return "SEI"
	case UnitSeqParamSet:
		return "SPS"
	case UnitPicParamSet:
		return "PPS"
	case UnitAccessUnitDelimiter:
		return "access unit delimiter"
	case UnitEndOfSeq:
		return "end of sequence"
	case UnitEndOfStream:
		return "end of stream"
	case UnitFillerData:
		return "filler data"
	case UnitSeqParamSetExt:
		return "SPS extension"
	case UnitPrefix:
		return "prefix NAL unit"
	case UnitSubsetSeqParamSet:
		return "subset SPS"
	case UnitDepthParamSet:
		return "depth parameter set"
	case UnitSliceAux:
		return "auxiliary slice"
	case UnitSliceExtension:
		return "slice extension"
	case UnitSliceExtensionDepth:
		return "slice extension for depth/MVC view"
	default:
		if t.IsReserved() {
			return fmt.Sprintf("reserved(%d)", uint8(t))
		}
		return fmt.Sprintf("unspecified(%d)", uint8(t))
	}
}

// Header is the 1-byte NAL unit header: forbidden_zero_bit, nal_ref_idc
// and nal_unit_type.
type Header uint8

// ParseHeader validates the forbidden_zero_bit and wraps the header byte.
func ParseHeader(b byte) (Header, error) {
	if b&0x80 != 0 {
		return 0, nal.MalformedFramingError{Reason: "forbidden_zero_bit is set"}
	}
	return Header(b), nil
}

// RefIdc returns the 2-bit nal_ref_idc. Zero means the unit is not used
// for reference.
func (h Header) RefIdc() uint8 {
	return uint8(h>>5) & 0x03
}

// Type returns the 5-bit nal_unit_type.
func (h Header) Type() UnitType {
	return UnitType(h & 0x1f)
}

func (h Header) String() string {
	return fmt.Sprintf("%s ref_idc=%d", h.Type(), h.RefIdc())
}

// extHeaderLen is the full extended header width: 1 header byte plus the
// 3-byte SVC/MVC extension.
const extHeaderLen = 4

// MvcExtension is the 3-byte MVC NAL header extension (spec H.7.3.1.1).
// The extension bytes are not subject to emulation prevention.
type MvcExtension [3]byte

func (e MvcExtension) NonIdrFlag() bool    { return e[0]&0x40 != 0 }
func (e MvcExtension) PriorityID() uint8   { return e[0] & 0x3f }
func (e MvcExtension) ViewID() uint16      { return uint16(e[1])<<2 | uint16(e[2])>>6 }
func (e MvcExtension) TemporalID() uint8   { return (e[2] >> 3) & 0x07 }
func (e MvcExtension) AnchorPicFlag() bool { return e[2]&0x04 != 0 }
func (e MvcExtension) InterViewFlag() bool { return e[2]&0x02 != 0 }

// SvcExtension is the 3-byte SVC NAL header extension (spec F.7.3.1.1).
type SvcExtension [3]byte

func (e SvcExtension) IdrFlag() bool              { return e[0]&0x40 != 0 }
func (e SvcExtension) PriorityID() uint8          { return e[0] & 0x3f }
func (e SvcExtension) NoInterLayerPredFlag() bool { return e[1]&0x80 != 0 }
func (e SvcExtension) DependencyID() uint8        { return (e[1] >> 4) & 0x07 }
func (e SvcExtension) QualityID() uint8           { return e[1] & 0x0f }
func (e SvcExtension) TemporalID() uint8          { return (e[2] >> 5) & 0x07 }
func (e SvcExtension) UseRefBasePicFlag() bool    { return e[2]&0x10 != 0 }
func (e SvcExtension) DiscardableFlag() bool      { return e[2]&0x08 != 0 }
func (e SvcExtension) OutputFlag() bool           { return e[2]&0x04 != 0 }

// HeaderExtension is the extended NAL header for unit types 14, 20 and 21.
// The first extension bit (svc_extension_flag) selects the layout: exactly
// one of Svc and Mvc is non-nil.
type HeaderExtension struct {
	Svc *SvcExtension
	Mvc *MvcExtension
}

// ParseHeaderExtension interprets 3 extension bytes.
func ParseHeaderExtension(b [3]byte) HeaderExtension {
	if b[0]&0x80 != 0 {
		ext := SvcExtension(b)
		return HeaderExtension{Svc: &ext}
	}
	ext := MvcExtension(b)
	return HeaderExtension{Mvc: &ext}
}

// Unit is one framed NAL unit: its parsed header plus the complete unit
// bytes (header included), borrowed from the framing buffer. The caller
// must not mutate the source buffer while the Unit is in use.
type Unit struct {
	Header Header
	Data   []byte
}

// NewUnit wraps framed unit bytes, validating the header byte. The framing
// layer never rejects payload content; any failure here is a header-level
// framing defect.
func NewUnit(b []byte) (Unit, error) {
	if len(b) == 0 {
		return Unit{}, nal.MalformedFramingError{Reason: "empty NAL unit"}
	}
	h, err := ParseHeader(b[0])
	if err != nil {
		return Unit{}, err
	}
	return Unit{Header: h, Data: b}, nil
}

// Extension returns the 3-byte header extension for unit types that carry
// one.
func (u Unit) Extension() (HeaderExtension, error) {
	if !u.Header.Type().HasExtensionHeader() {
		return HeaderExtension{}, nal.MalformedFramingError{Reason: "NAL unit type has no header extension"}
	}
	if len(u.Data) < extHeaderLen {
		return HeaderExtension{}, nal.MalformedFramingError{Reason: "NAL unit shorter than its extended header"}
	}
	return ParseHeaderExtension([3]byte{u.Data[1], u.Data[2], u.Data[3]}), nil
}

// RBSP returns the unit's logical payload: header (extended where the type
// requires it) skipped and emulation-prevention bytes removed. The result
// aliases Data when no escapes occur.
func (u Unit) RBSP() ([]byte, error) {
	skip := 1
	if u.Header.Type().HasExtensionHeader() {
		skip = extHeaderLen
	}
	return nal.UnescapeFrom(u.Data, skip)
}
