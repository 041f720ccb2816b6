// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pileup

import (
	"context"
	"fmt"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/snpcall/encoding/bamprovider"
)

// BAMSourceOpts controls which reads a BAMSource admits into a pileup column.
type BAMSourceOpts struct {
	// FlagExclude: reads with a FLAG bit intersecting this value are left out
	// of pileup columns.  It does not affect Overlapping.
	FlagExclude int
	// MinBaseQual: base calls below this quality are left out of pileup
	// columns.
	MinBaseQual int
	// IgnoreOrphans: paired reads whose mate is not mapped in a proper pair
	// are left out of pileup columns.  It does not affect Overlapping.
	IgnoreOrphans bool
	// MaxReadSpan, if positive, is an upper bound on the size of the
	// reference-genome region a read maps to: reads starting more than
	// MaxReadSpan bases before a position are never examined for it.  If
	// zero, every read whose alignment covers the position is found through
	// the BAM index, whatever its length.
	MaxReadSpan int
}

// DefaultBAMSourceOpts matches the read and base filters of pysam's
// AlignmentFile.pileup and "samtools mpileup -Q 13".
var DefaultBAMSourceOpts = BAMSourceOpts{
	FlagExclude:   int(sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate),
	MinBaseQual:   13,
	IgnoreOrphans: true,
	MaxReadSpan:   0,
}

// BAMSource implements Source on top of a bamprovider.Provider.  Every query
// takes its own iterator (and thus its own reader) from the provider, so a
// BAMSource may be shared by concurrent workers.
type BAMSource struct {
	provider bamprovider.Provider
	opts     BAMSourceOpts
	refs     map[string]*sam.Reference
}

// NewBAMSource creates a BAMSource.  The caller retains ownership of provider
// and must close it after the last query.
func NewBAMSource(provider bamprovider.Provider, opts BAMSourceOpts) (*BAMSource, error) {
	if opts.MaxReadSpan < 0 {
		return nil, fmt.Errorf("pileup.NewBAMSource: MaxReadSpan must not be negative, got %d", opts.MaxReadSpan)
	}
	if opts.MinBaseQual < 0 || opts.MinBaseQual > 255 {
		return nil, fmt.Errorf("pileup.NewBAMSource: MinBaseQual out of range: %d", opts.MinBaseQual)
	}
	header, err := provider.GetHeader()
	if err != nil {
		return nil, err
	}
	refs := make(map[string]*sam.Reference, len(header.Refs()))
	for _, ref := range header.Refs() {
		refs[ref.Name()] = ref
	}
	return &BAMSource{
		provider: provider,
		opts:     opts,
		refs:     refs,
	}, nil
}

// forEachOverlapping calls fn on every mapped read whose alignment covers
// pos0, in coordinate order.
func (s *BAMSource) forEachOverlapping(ctx context.Context, refName string, pos0 PosType, fn func(samr *sam.Record) error) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	ref := s.refs[refName]
	if ref == nil || pos0 < 0 || int(pos0) >= ref.Len() {
		// Contig absent from the BAM: nothing covers the position.
		return
	}
	var iter bamprovider.Iterator
	if s.opts.MaxReadSpan > 0 {
		iter = s.provider.NewIterator(ref, int(pos0)-s.opts.MaxReadSpan, int(pos0)+1)
	} else {
		iter = s.provider.NewOverlapIterator(ref, int(pos0), int(pos0)+1)
	}
	defer func() {
		if e := iter.Close(); e != nil && err == nil {
			err = e
		}
	}()
	for iter.Scan() {
		samr := iter.Record()
		if samr.Flags&sam.Unmapped != 0 {
			continue
		}
		if PosType(samr.End()) <= pos0 {
			continue
		}
		if err = fn(samr); err != nil {
			return
		}
	}
	return
}

// Overlapping implements Source.
func (s *BAMSource) Overlapping(ctx context.Context, refName string, pos0 PosType) (n int, err error) {
	err = s.forEachOverlapping(ctx, refName, pos0, func(*sam.Record) error {
		n++
		return nil
	})
	return
}

// Column implements Source.
func (s *BAMSource) Column(ctx context.Context, refName string, pos0 PosType) (col Column, found bool, err error) {
	col.Pos = pos0
	flagExclude := sam.Flags(s.opts.FlagExclude)
	minBaseQual := byte(s.opts.MinBaseQual)
	err = s.forEachOverlapping(ctx, refName, pos0, func(samr *sam.Record) error {
		if samr.Flags&flagExclude != 0 {
			return nil
		}
		if s.opts.IgnoreOrphans && isOrphan(samr) {
			return nil
		}
		posInRead, covered, hasBase, e := alignedOffset(samr, pos0)
		if e != nil {
			return e
		}
		if !covered {
			return nil
		}
		found = true
		if !hasBase || int(posInRead) >= samr.Seq.Length {
			col.Entries = append(col.Entries, Entry{})
			return nil
		}
		qual := byte(0xff)
		if int(posInRead) < len(samr.Qual) {
			qual = samr.Qual[posInRead]
		}
		if qual < minBaseQual {
			return nil
		}
		col.Entries = append(col.Entries, Entry{
			Base:    seqBaseAt(samr, posInRead),
			Qual:    qual,
			HasBase: true,
		})
		return nil
	})
	return
}

// isOrphan returns true for a paired read that is not part of a proper pair.
func isOrphan(samr *sam.Record) bool {
	return samr.Flags&sam.Paired != 0 && samr.Flags&sam.ProperPair == 0
}

// seqBaseAt returns the ASCII base at posInRead.
func seqBaseAt(samr *sam.Record, posInRead PosType) byte {
	d := byte(samr.Seq.Seq[posInRead>>1])
	if posInRead&1 == 0 {
		return Seq8ToASCIITable[d>>4]
	}
	return Seq8ToASCIITable[d&0xf]
}

// alignedOffset walks the read's CIGAR to find which read offset is aligned
// to pos0.  covered is false when the alignment does not reach pos0 at all;
// hasBase is false when pos0 falls inside a deletion or reference skip.
func alignedOffset(samr *sam.Record, pos0 PosType) (posInRead PosType, covered, hasBase bool, err error) {
	posInRef := PosType(samr.Pos)
	if pos0 < posInRef {
		return
	}
	for _, co := range samr.Cigar {
		// Iterate over one CIGAR operation at a time.
		cLen := PosType(co.Len())
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if pos0 < posInRef+cLen {
				return posInRead + (pos0 - posInRef), true, true, nil
			}
			posInRef += cLen
			posInRead += cLen
		case sam.CigarInsertion, sam.CigarSoftClipped:
			posInRead += cLen
		case sam.CigarDeletion, sam.CigarSkipped:
			if pos0 < posInRef+cLen {
				return 0, true, false, nil
			}
			posInRef += cLen
		case sam.CigarHardClipped, sam.CigarPadded:
			// do nothing
		default:
			return 0, false, false, fmt.Errorf("pileup.alignedOffset: unexpected CIGAR code %v in read %s", co, samr.Name)
		}
	}
	return
}
