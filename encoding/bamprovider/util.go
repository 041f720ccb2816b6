package bamprovider

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// RefByName returns the reference named refName in h, or nil if h has no such
// reference.
func RefByName(h *sam.Header, refName string) *sam.Reference {
	for _, ref := range h.Refs() {
		if ref.Name() == refName {
			return ref
		}
	}
	return nil
}

// NewRefIterator returns an iterator over the records of the named reference
// whose alignment start lies in [start, limit).
func NewRefIterator(p Provider, refName string, start, limit int) Iterator {
	h, err := p.GetHeader()
	if err != nil {
		return NewErrorIterator(err)
	}
	ref := RefByName(h, refName)
	if ref == nil {
		return NewErrorIterator(fmt.Errorf("bamprovider.NewRefIterator: reference '%s' not found", refName))
	}
	return p.NewIterator(ref, start, limit)
}

// NewRefOverlapIterator returns an iterator over the records of the named
// reference whose alignment intersects [start, limit).
func NewRefOverlapIterator(p Provider, refName string, start, limit int) Iterator {
	h, err := p.GetHeader()
	if err != nil {
		return NewErrorIterator(err)
	}
	ref := RefByName(h, refName)
	if ref == nil {
		return NewErrorIterator(fmt.Errorf("bamprovider.NewRefOverlapIterator: reference '%s' not found", refName))
	}
	return p.NewOverlapIterator(ref, start, limit)
}
