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
package genotype

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/snpcall/pileup"
)

// Allele identifies which of a site's two alleles a read supports.
type Allele uint8

const (
	// AlleleRef marks a read supporting the reference allele.
	AlleleRef Allele = iota
	// AlleleAlt marks a read supporting the alternate allele.
	AlleleAlt
)

// ReadEvidence is one read's support for an allele, with the error
// probability of its base call.
type ReadEvidence struct {
	Allele    Allele
	ErrorProb float64
}

// Evidence summarizes the reads covering a single site.
type Evidence struct {
	Chrom string
	Pos   int

	// OverlapCount is the number of reads whose alignment spans the position,
	// whatever base they carry there.
	OverlapCount int
	// RefCount and AltCount count pileup entries whose base matches the ref
	// or alt allele.
	RefCount, AltCount int
	// ErrorProb is the base-call error probability of the last
	// ref-supporting read in pileup order.  It is only meaningful when
	// ErrorProbDefined is set.
	ErrorProb        float64
	ErrorProbDefined bool
	// ColumnFound is false when the source had no pileup column at the
	// position.
	ColumnFound bool
	// Reads lists the ref- and alt-supporting reads in pileup order.
	Reads []ReadEvidence
}

// Aggregate queries src for the pileup at site and summarizes it.  Bases are
// compared to the alleles case-insensitively; entries without a base call
// (deletions) and bases matching neither allele only count toward
// OverlapCount.
//
// REQUIRES: site.Validate() == nil.
func Aggregate(ctx context.Context, src pileup.Source, site Site) (ev Evidence, err error) {
	ev.Chrom = site.Chrom
	ev.Pos = site.Pos
	pos0 := site.pos0()
	if ev.OverlapCount, err = src.Overlapping(ctx, site.Chrom, pos0); err != nil {
		err = errors.E(err, "counting reads overlapping", site.String())
		return
	}
	var col pileup.Column
	if col, ev.ColumnFound, err = src.Column(ctx, site.Chrom, pos0); err != nil {
		err = errors.E(err, "reading pileup column at", site.String())
		return
	}
	if !ev.ColumnFound {
		return
	}
	ref := toUpper(site.Ref[0])
	alt := toUpper(site.Alt[0])
	for _, e := range col.Entries {
		if !e.HasBase {
			continue
		}
		switch toUpper(e.Base) {
		case alt:
			ev.AltCount++
			ev.Reads = append(ev.Reads, ReadEvidence{
				Allele:    AlleleAlt,
				ErrorProb: pileup.PhredToErrProb(e.Qual),
			})
		case ref:
			ev.RefCount++
			// Last ref-supporting read wins.
			ev.ErrorProb = pileup.PhredToErrProb(e.Qual)
			ev.ErrorProbDefined = true
			ev.Reads = append(ev.Reads, ReadEvidence{
				Allele:    AlleleRef,
				ErrorProb: ev.ErrorProb,
			})
		}
	}
	return
}

func toUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
