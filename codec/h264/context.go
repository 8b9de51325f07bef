package h264

import (
	"github.com/ugparu/goh264/utils/logger"
)

// SPSID identifies a sequence parameter set. Valid range 0..31.
type SPSID uint8

// PPSID identifies a picture parameter set. Valid range 0..31. It is a
// distinct type from SPSID so the two id spaces cannot be crossed by
// accident.
type PPSID uint8

const maxParamSetID = 31

// Context is the caller-owned store of the parameter sets seen so far in
// one logical stream, used to resolve references from dependent units.
// Subset SPSes live in their own id space; a subset SPS never shadows a
// plain SPS even when their numeric ids collide.
//
// Insertion never validates references; a PPS may be stored before the SPS
// it names exists. Integrity is checked lazily when a dependent element
// (a slice header) is resolved. A Context is not safe for concurrent use;
// independent streams need independent Contexts, and clearing on stream
// reset is the caller's responsibility.
type Context struct {
	sps       map[SPSID]*SPS
	pps       map[PPSID]*PPS
	subsetSps map[SPSID]*SubsetSPS
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{
		sps:       map[SPSID]*SPS{},
		pps:       map[PPSID]*PPS{},
		subsetSps: map[SPSID]*SubsetSPS{},
	}
}

// PutSPS inserts or replaces the SPS under its own id. A stream may
// legally redefine a parameter set; the last writer wins.
func (c *Context) PutSPS(sps *SPS) {
	if _, ok := c.sps[sps.ID]; ok {
		logger.Debugf("Context", "replacing SPS %d", sps.ID)
	}
	c.sps[sps.ID] = sps
}

// SPSByID returns the stored SPS or an UnresolvedRefError.
func (c *Context) SPSByID(id SPSID) (*SPS, error) {
	sps, ok := c.sps[id]
	if !ok {
		return nil, UnresolvedRefError{Kind: "SPS", ID: uint8(id)}
	}
	return sps, nil
}

// PutPPS inserts or replaces the PPS under its own id. The SPS it
// references need not exist yet.
func (c *Context) PutPPS(pps *PPS) {
	if _, ok := c.pps[pps.ID]; ok {
		logger.Debugf("Context", "replacing PPS %d", pps.ID)
	}
	c.pps[pps.ID] = pps
}

// PPSByID returns the stored PPS or an UnresolvedRefError.
func (c *Context) PPSByID(id PPSID) (*PPS, error) {
	pps, ok := c.pps[id]
	if !ok {
		return nil, UnresolvedRefError{Kind: "PPS", ID: uint8(id)}
	}
	return pps, nil
}

// PutSubsetSPS inserts or replaces the subset SPS under its own id.
func (c *Context) PutSubsetSPS(sps *SubsetSPS) {
	if _, ok := c.subsetSps[sps.SPS.ID]; ok {
		logger.Debugf("Context", "replacing subset SPS %d", sps.SPS.ID)
	}
	c.subsetSps[sps.SPS.ID] = sps
}

// SubsetSPSByID returns the stored subset SPS or an UnresolvedRefError.
func (c *Context) SubsetSPSByID(id SPSID) (*SubsetSPS, error) {
	sps, ok := c.subsetSps[id]
	if !ok {
		return nil, UnresolvedRefError{Kind: "subset SPS", ID: uint8(id)}
	}
	return sps, nil
}
