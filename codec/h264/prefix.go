package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
	"github.com/ugparu/goh264/utils/nal"
)

// Reference-base-picture marking operations, spec G.7.3.3.5.
const (
	refBaseMarkingEnd            = 0
	RefBaseShortTermUnusedForRef = 1
	RefBaseLongTermUnusedForRef  = 2
)

// DecRefBasePicMarkingOp is one memory_management_base_control_operation.
// The value field used depends on Operation.
type DecRefBasePicMarkingOp struct {
	Operation                     uint8
	DifferenceOfBasePicNumsMinus1 uint32 // op 1
	LongTermBasePicNum            uint32 // op 2
}

// PrefixRefBasePic is the reference base picture information of an SVC
// prefix NAL unit with nal_ref_idc != 0, spec F.7.3.2.12.1.
type PrefixRefBasePic struct {
	StoreRefBasePicFlag bool
	Marking             []DecRefBasePicMarkingOp
	AdditionalFlag      bool
}

// PrefixNALUnit is a decoded prefix_nal_unit_rbsp (unit type 14,
// spec 7.3.2.12). MVC prefix units have an empty body; RefBasePic is set
// only for SVC units that are references.
type PrefixNALUnit struct {
	Extension  HeaderExtension
	RefBasePic *PrefixRefBasePic
}

// ParsePrefix decodes a prefix NAL unit. hdr and ext come from the unit's
// first four bytes; rbsp is the escape-free body following them, which may
// be empty.
func ParsePrefix(hdr Header, ext *HeaderExtension, rbsp []byte) (*PrefixNALUnit, error) {
	p, err := parsePrefix(hdr, ext, rbsp)
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse prefix NAL failed(%w)", err)
	}
	return p, nil
}

func parsePrefix(hdr Header, ext *HeaderExtension, rbsp []byte) (*PrefixNALUnit, error) {
	if ext == nil {
		return nil, nal.MalformedFramingError{Reason: "prefix NAL unit without header extension"}
	}
	p := PrefixNALUnit{Extension: *ext}
	if ext.Svc == nil || hdr.RefIdc() == 0 {
		return &p, nil
	}
	r := bits.NewReader(rbsp)
	var ref PrefixRefBasePic
	var err error
	if ref.StoreRefBasePicFlag, err = r.ReadFlag("store_ref_base_pic_flag"); err != nil {
		return nil, err
	}
	if ref.StoreRefBasePicFlag {
		if ref.Marking, err = readDecRefBasePicMarking(r); err != nil {
			return nil, err
		}
	}
	if ref.AdditionalFlag, err = r.ReadFlag("additional_prefix_nal_unit_extension_flag"); err != nil {
		return nil, err
	}
	p.RefBasePic = &ref
	return &p, nil
}

func readDecRefBasePicMarking(r *bits.Reader) ([]DecRefBasePicMarkingOp, error) {
	ops := []DecRefBasePicMarkingOp{}
	for {
		op, err := r.ReadUE("memory_management_base_control_operation")
		if err != nil {
			return nil, err
		}
		switch op {
		case refBaseMarkingEnd:
			return ops, nil
		case RefBaseShortTermUnusedForRef:
			diff, err := r.ReadUE("difference_of_base_pic_nums_minus1")
			if err != nil {
				return nil, err
			}
			ops = append(ops, DecRefBasePicMarkingOp{Operation: uint8(op), DifferenceOfBasePicNumsMinus1: diff})
		case RefBaseLongTermUnusedForRef:
			num, err := r.ReadUE("long_term_base_pic_num")
			if err != nil {
				return nil, err
			}
			ops = append(ops, DecRefBasePicMarkingOp{Operation: uint8(op), LongTermBasePicNum: num})
		default:
			return nil, RangeError{Field: "memory_management_base_control_operation", Value: int64(op), Min: 0, Max: RefBaseLongTermUnusedForRef}
		}
	}
}
