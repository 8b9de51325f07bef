package h264

import (
	"fmt"

	"github.com/ugparu/goh264/utils/bits/pio"
	"github.com/ugparu/goh264/utils/nal"
)

const (
	confRecordVersion         = 1
	minConfRecordLength       = 7
	lengthFieldSize           = 2
	maskLengthSizeMinusOne    = 0x03
	maskLengthSizeMinusOneInv = 0xFC
	maskSPSCount              = 0x1F
	maskSPSCountInv           = 0xE0
	maskChromaFormat          = 0x03
	maskChromaFormatInv       = 0xFC
	maskBitDepthMinus8        = 0x07
	maskBitDepthMinus8Inv     = 0xF8
)

// ConfRecordExtension holds the fields that follow the PPS array in an
// avcC record for profiles carrying chroma info (ISO/IEC 14496-15 5.3.3.1).
type ConfRecordExtension struct {
	ChromaFormat         uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
	SPSExt               [][]byte // SPS extension NALUs.
}

// AVCDecoderConfRecord is the payload of an avcC box: the stream profile
// and level bytes, the AVCC length-field size, and the carried parameter
// set NAL units. Extension is nil when the profile has no chroma info
// fields or the record predates them.
type AVCDecoderConfRecord struct {
	AVCProfileIndication uint8    // Profile indication for the AVC stream.
	ProfileCompatibility uint8    // Profile compatibility for the AVC stream.
	AVCLevelIndication   uint8    // Level indication for the AVC stream.
	LengthSizeMinusOne   uint8    // Length size (in bytes) minus one for the AVC stream.
	SPS                  [][]byte // Sequence Parameter Sets (SPS) containing the SPS NALUs.
	PPS                  [][]byte // Picture Parameter Sets (PPS) containing the PPS NALUs.
	Extension            *ConfRecordExtension
}

// Unmarshal decodes the binary representation of AVCDecoderConfRecord from the given byte slice.
// It returns the number of bytes read and any decoding error encountered.
func (avc *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < minConfRecordLength {
		err = ErrDecconfInvalid
		return
	}
	if b[0] != confRecordVersion {
		err = ErrDecconfInvalid
		return
	}

	avc.AVCProfileIndication = b[1]
	avc.ProfileCompatibility = b[2]
	avc.AVCLevelIndication = b[3]
	avc.LengthSizeMinusOne = b[4] & maskLengthSizeMinusOne
	spscount := int(b[5] & maskSPSCount)
	n += 6

	for i := 0; i < spscount; i++ {
		if len(b) < n+2 {
			err = ErrDecconfInvalid
			return
		}
		spslen := int(pio.U16BE(b[n:]))
		n += 2

		if len(b) < n+spslen {
			err = ErrDecconfInvalid
			return
		}
		avc.SPS = append(avc.SPS, b[n:n+spslen])
		n += spslen
	}

	if len(b) < n+1 {
		err = ErrDecconfInvalid
		return
	}
	ppscount := int(b[n])
	n++

	for i := 0; i < ppscount; i++ {
		if len(b) < n+2 {
			err = ErrDecconfInvalid
			return
		}
		ppslen := int(pio.U16BE(b[n:]))
		n += 2

		if len(b) < n+ppslen {
			err = ErrDecconfInvalid
			return
		}
		avc.PPS = append(avc.PPS, b[n:n+ppslen])
		n += ppslen
	}

	if !hasChromaInfo(avc.AVCProfileIndication) || len(b) == n {
		return
	}

	if len(b) < n+4 {
		err = ErrDecconfInvalid
		return
	}
	ext := ConfRecordExtension{
		ChromaFormat:         b[n] & maskChromaFormat,
		BitDepthLumaMinus8:   b[n+1] & maskBitDepthMinus8,
		BitDepthChromaMinus8: b[n+2] & maskBitDepthMinus8,
	}
	extcount := int(b[n+3])
	n += 4

	for i := 0; i < extcount; i++ {
		if len(b) < n+2 {
			err = ErrDecconfInvalid
			return
		}
		extlen := int(pio.U16BE(b[n:]))
		n += 2

		if len(b) < n+extlen {
			err = ErrDecconfInvalid
			return
		}
		ext.SPSExt = append(ext.SPSExt, b[n:n+extlen])
		n += extlen
	}
	avc.Extension = &ext

	return
}

// Len calculates and returns the length of the binary representation of AVCDecoderConfRecord.
// It includes the length of the fixed-size fields and the lengths of SPS and PPS data.
func (avc *AVCDecoderConfRecord) Len() (n int) {
	n = minConfRecordLength
	for _, sps := range avc.SPS {
		n += lengthFieldSize + len(sps)
	}
	for _, pps := range avc.PPS {
		n += lengthFieldSize + len(pps)
	}
	if avc.Extension != nil {
		n += 4
		for _, ext := range avc.Extension.SPSExt {
			n += lengthFieldSize + len(ext)
		}
	}
	return
}

// Marshal serializes the AVCDecoderConfRecord to a binary representation.
// It writes the serialized data to the provided byte slice and returns the number of bytes written.
func (avc *AVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = confRecordVersion
	b[1] = avc.AVCProfileIndication
	b[2] = avc.ProfileCompatibility
	b[3] = avc.AVCLevelIndication
	b[4] = avc.LengthSizeMinusOne | maskLengthSizeMinusOneInv
	b[5] = uint8(len(avc.SPS)) | maskSPSCountInv //nolint:gosec // integer overflow for sps count is not possible
	n += 6

	for _, sps := range avc.SPS {
		pio.PutU16BE(b[n:], uint16(len(sps))) //nolint:gosec // integer overflow for sps length is not possible
		n += 2
		copy(b[n:], sps)
		n += len(sps)
	}

	b[n] = uint8(len(avc.PPS)) //nolint:gosec // integer overflow for pps count is not possible
	n++

	for _, pps := range avc.PPS {
		pio.PutU16BE(b[n:], uint16(len(pps))) //nolint:gosec // integer overflow for pps length is not possible
		n += 2
		copy(b[n:], pps)
		n += len(pps)
	}

	if avc.Extension == nil {
		return
	}
	b[n] = avc.Extension.ChromaFormat | maskChromaFormatInv
	b[n+1] = avc.Extension.BitDepthLumaMinus8 | maskBitDepthMinus8Inv
	b[n+2] = avc.Extension.BitDepthChromaMinus8 | maskBitDepthMinus8Inv
	b[n+3] = uint8(len(avc.Extension.SPSExt)) //nolint:gosec // integer overflow for ext count is not possible
	n += 4

	for _, ext := range avc.Extension.SPSExt {
		pio.PutU16BE(b[n:], uint16(len(ext))) //nolint:gosec // integer overflow for ext length is not possible
		n += 2
		copy(b[n:], ext)
		n += len(ext)
	}

	return
}

// CreateContext parses the carried SPS then PPS NAL units into a fresh
// Context, so slice headers of the stream can be decoded against it.
func (avc *AVCDecoderConfRecord) CreateContext() (*Context, error) {
	ctx := NewContext()
	for _, raw := range avc.SPS {
		rbsp, err := paramSetRBSP(raw, UnitSeqParamSet)
		if err != nil {
			return nil, err
		}
		sps, err := ParseSPS(rbsp)
		if err != nil {
			return nil, err
		}
		ctx.PutSPS(sps)
	}
	for _, raw := range avc.PPS {
		rbsp, err := paramSetRBSP(raw, UnitPicParamSet)
		if err != nil {
			return nil, err
		}
		pps, err := ParsePPS(ctx, rbsp)
		if err != nil {
			return nil, err
		}
		ctx.PutPPS(pps)
	}
	return ctx, nil
}

func paramSetRBSP(raw []byte, want UnitType) ([]byte, error) {
	unit, err := NewUnit(raw)
	if err != nil {
		return nil, err
	}
	if unit.Header.Type() != want {
		return nil, nal.MalformedFramingError{
			Reason: fmt.Sprintf("expected %v parameter set entry, got %v", want, unit.Header.Type()),
		}
	}
	return unit.RBSP()
}
