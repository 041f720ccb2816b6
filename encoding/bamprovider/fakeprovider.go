package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// fakeProvider is only for unittests. It yields the given records.
type fakeProvider struct {
	header *sam.Header
	recs   []*sam.Record
}

type fakeIterator struct {
	recs []*sam.Record
	rec  *sam.Record

	refID        int
	start, limit int
	overlap      bool
}

// NewFakeProvider creates a provider that returns "header" in response to a
// GetHeader() call, and the subset of recs in the requested range from
// NewIterator calls.  recs must be sorted by coordinate.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	return &fakeProvider{header, recs}
}

// GetHeader implements the Provider interface. It returns the header passed to
// the constructor.
func (b *fakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// Close implements the Provider interface.
func (b *fakeProvider) Close() error {
	return nil
}

// NewIterator implements the Provider interface.
func (b *fakeProvider) NewIterator(ref *sam.Reference, start, limit int) Iterator {
	return &fakeIterator{
		recs:  b.recs,
		refID: ref.ID(),
		start: start,
		limit: limit,
	}
}

// NewOverlapIterator implements the Provider interface.
func (b *fakeProvider) NewOverlapIterator(ref *sam.Reference, start, limit int) Iterator {
	return &fakeIterator{
		recs:    b.recs,
		refID:   ref.ID(),
		start:   start,
		limit:   limit,
		overlap: true,
	}
}

// Err implements the Iterator interface.
func (i *fakeIterator) Err() error {
	return nil
}

// Close implements the Iterator interface.
func (i *fakeIterator) Close() error {
	return nil
}

// Scan implements the Iterator interface.
func (i *fakeIterator) Scan() bool {
	for {
		if len(i.recs) == 0 {
			return false
		}
		i.rec = i.recs[0]
		i.recs = i.recs[1:]
		if i.rec.Ref.ID() != i.refID || i.rec.Pos >= i.limit {
			continue
		}
		if i.overlap && i.rec.End() > i.start {
			return true
		}
		if !i.overlap && i.rec.Pos >= i.start {
			return true
		}
	}
}

// Record implements the Iterator interface.
func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	copy := *i.rec
	return &copy
}
