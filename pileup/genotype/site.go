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
	"fmt"
	"strings"

	"github.com/grailbio/snpcall/pileup"
)

// Site is a candidate biallelic SNP.
type Site struct {
	// Chrom is the contig name.
	Chrom string
	// Pos is the 1-based position.
	Pos int
	// Ref and Alt are the (single-character) reference and alternate alleles.
	Ref, Alt string
	// MAF is the population minor-allele frequency, in [0, 1].
	MAF float64
}

// NewSite returns a validated Site.  Alleles are upper-cased.
func NewSite(chrom string, pos int, ref, alt string, maf float64) (Site, error) {
	s := Site{
		Chrom: chrom,
		Pos:   pos,
		Ref:   strings.ToUpper(ref),
		Alt:   strings.ToUpper(alt),
		MAF:   maf,
	}
	return s, s.Validate()
}

// Validate returns an *InvalidSiteError if the site cannot be scored.
func (s Site) Validate() error {
	var reason string
	switch {
	case s.Chrom == "":
		reason = "empty contig name"
	case s.Pos <= 0 || s.Pos > pileup.PosTypeMax:
		reason = fmt.Sprintf("position %d out of range", s.Pos)
	case len(s.Ref) != 1:
		reason = fmt.Sprintf("ref allele %q is not a single base", s.Ref)
	case len(s.Alt) != 1:
		reason = fmt.Sprintf("alt allele %q is not a single base", s.Alt)
	case strings.EqualFold(s.Ref, s.Alt):
		reason = fmt.Sprintf("ref and alt alleles are both %q", s.Ref)
	case !validMAF(s.MAF):
		reason = fmt.Sprintf("maf %v not in [0, 1]", s.MAF)
	default:
		return nil
	}
	return &InvalidSiteError{Site: s, Reason: reason}
}

// pos0 returns the 0-based position of the site.
func (s Site) pos0() pileup.PosType {
	return pileup.PosType(s.Pos - 1)
}

func (s Site) String() string {
	return fmt.Sprintf("%s:%d %s>%s", s.Chrom, s.Pos, s.Ref, s.Alt)
}

func validMAF(maf float64) bool {
	// NaN fails both comparisons.
	return maf >= 0 && maf <= 1
}

// Priors holds the Hardy-Weinberg genotype priors of a site.
type Priors struct {
	Ref, Alt, Het float64
}

// NewPriors derives genotype priors from a minor-allele frequency:
//   Ref = (1-maf)^2, Alt = maf^2, Het = 1 - Ref - Alt.
func NewPriors(maf float64) (Priors, error) {
	if !validMAF(maf) {
		return Priors{}, &InvalidSiteError{
			Site:   Site{MAF: maf},
			Reason: fmt.Sprintf("maf %v not in [0, 1]", maf),
		}
	}
	p := Priors{
		Ref: (1 - maf) * (1 - maf),
		Alt: maf * maf,
	}
	p.Het = 1 - p.Alt - p.Ref
	if p.Het < 0 {
		// Rounding at maf ~ 0 or 1.
		p.Het = 0
	}
	return p, nil
}

// Priors returns the genotype priors for the site's MAF.
func (s Site) Priors() (Priors, error) {
	return NewPriors(s.MAF)
}

// Genotype is one of the three diploid genotypes of a biallelic site.
type Genotype int

const (
	// HomRef is the homozygous-reference genotype.
	HomRef Genotype = iota
	// HomAlt is the homozygous-alternate genotype.
	HomAlt
	// Het is the heterozygous genotype.
	Het
	nGenotype
)

// Format renders g with the site's alleles, e.g. "AA", "GG" or "AG".
func (g Genotype) Format(s Site) string {
	switch g {
	case HomRef:
		return s.Ref + s.Ref
	case HomAlt:
		return s.Alt + s.Alt
	case Het:
		return s.Ref + s.Alt
	}
	return "."
}

func (g Genotype) String() string {
	switch g {
	case HomRef:
		return "hom-ref"
	case HomAlt:
		return "hom-alt"
	case Het:
		return "het"
	}
	return fmt.Sprintf("Genotype(%d)", int(g))
}
