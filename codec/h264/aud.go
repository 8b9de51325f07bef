package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits"
)

// PrimaryPicType tells which slice types may occur in the primary coded
// picture of the access unit, spec table 7-5.
type PrimaryPicType uint8

// primary_pic_type values.
const (
	PicTypeI       PrimaryPicType = 0
	PicTypeIP      PrimaryPicType = 1
	PicTypeIPB     PrimaryPicType = 2
	PicTypeSI      PrimaryPicType = 3
	PicTypeSISP    PrimaryPicType = 4
	PicTypeISI     PrimaryPicType = 5
	PicTypeISIPSP  PrimaryPicType = 6
	PicTypeISIPSPB PrimaryPicType = 7
)

func (t PrimaryPicType) String() string {
	names := [8]string{"I", "I,P", "I,P,B", "SI", "SI,SP", "I,SI", "I,SI,P,SP", "I,SI,P,SP,B"}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("PrimaryPicType(%d)", uint8(t))
}

// AccessUnitDelimiter is a decoded access_unit_delimiter_rbsp (unit
// type 9, spec 7.3.2.4).
type AccessUnitDelimiter struct {
	PrimaryPicType PrimaryPicType
}

const primaryPicTypeBits = 3

// ParseAUD decodes an access unit delimiter from escape-free RBSP bytes.
func ParseAUD(rbsp []byte) (*AccessUnitDelimiter, error) {
	r := bits.NewReader(rbsp)
	v, err := r.ReadBits("primary_pic_type", primaryPicTypeBits)
	if err == nil {
		err = r.FinishRBSP()
	}
	if err != nil {
		return nil, fmt.Errorf("h264parser: parse AUD failed(%w)", err)
	}
	return &AccessUnitDelimiter{PrimaryPicType: PrimaryPicType(v)}, nil
}
