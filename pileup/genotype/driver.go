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
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/snpcall/encoding/bamprovider"
	"github.com/grailbio/snpcall/encoding/fasta"
	"github.com/grailbio/snpcall/interval"
	"github.com/grailbio/snpcall/pileup"
	perrors "github.com/pkg/errors"
)

// Opts holds the options of Run.
type Opts struct {
	// Commandline options.  The yaml keys match the flag names.
	BamIndexPath      string  `yaml:"index"`
	FastaPath         string  `yaml:"fasta"`
	Region            string  `yaml:"region"`
	BedPath           string  `yaml:"bed"`
	FlagExclude       int     `yaml:"flag-exclude"`
	MinBaseQual       int     `yaml:"min-base-qual"`
	IgnoreOrphans     bool    `yaml:"ignore-orphans"`
	MaxReadSpan       int     `yaml:"max-read-span"`
	Parallelism       int     `yaml:"parallelism"`
	Model             string  `yaml:"model"`
	RefEvidence       string  `yaml:"ref-evidence"`
	FallbackErrorProb float64 `yaml:"fallback-error-prob"`
	Rescale           bool    `yaml:"rescale"`
	SkipFailed        bool    `yaml:"skip-failed"`
	FailFast          bool    `yaml:"fail-fast"`
}

// DefaultOpts are the defaults of the bio-genotype command-line flags.
var DefaultOpts = Opts{
	FlagExclude:       pileup.DefaultBAMSourceOpts.FlagExclude,
	MinBaseQual:       pileup.DefaultBAMSourceOpts.MinBaseQual,
	IgnoreOrphans:     pileup.DefaultBAMSourceOpts.IgnoreOrphans,
	MaxReadSpan:       pileup.DefaultBAMSourceOpts.MaxReadSpan,
	Parallelism:       0,
	Model:             "legacy",
	RefEvidence:       "gated",
	FallbackErrorProb: 0,
	Rescale:           false,
	SkipFailed:        false,
	FailFast:          false,
}

// Result is the outcome for one candidate site.  Err is nil iff Call is
// valid.  Evidence is nil if the site failed before its reads were examined.
type Result struct {
	Site     Site
	Evidence *Evidence
	Call     Call
	Err      error
}

// CheckRefAllele returns an *InvalidSiteError if the site's ref allele
// disagrees with the reference genome.  An 'N' in the reference matches any
// allele.
func CheckRefAllele(ref fasta.Fasta, site Site) error {
	b, err := ref.Base(site.Chrom, int(site.pos0()))
	if err != nil {
		return &InvalidSiteError{Site: site, Reason: err.Error()}
	}
	if b != 'N' && b != toUpper(site.Ref[0]) {
		return &InvalidSiteError{Site: site, Reason: fmt.Sprintf("ref allele %s does not match reference base %c", site.Ref, b)}
	}
	return nil
}

// callSite runs the aggregate-then-call pipeline for a single site.  If ref is
// non-nil, the site's ref allele is checked against it first.
func callSite(ctx context.Context, src pileup.Source, caller *Caller, ref fasta.Fasta, site Site) (r Result) {
	r.Site = site
	if r.Err = site.Validate(); r.Err != nil {
		return
	}
	if ref != nil {
		if r.Err = CheckRefAllele(ref, site); r.Err != nil {
			return
		}
	}
	priors, err := site.Priors()
	if err != nil {
		r.Err = err
		return
	}
	ev, err := Aggregate(ctx, src, site)
	if err != nil {
		r.Err = err
		return
	}
	r.Evidence = &ev
	if r.Call, err = caller.Call(priors, ev); err != nil {
		r.Err = perrors.Wrapf(err, "%s", site)
	}
	return
}

// CallSites genotypes every site, spreading them across up to parallelism
// workers (runtime.NumCPU() if parallelism <= 0).  The returned slice is
// parallel to sites.  Site-level failures are recorded in Result.Err and do
// not stop the other sites, unless failFast is set, in which case the first
// failure is also returned.  Each failed site is logged at Error level.
func CallSites(ctx context.Context, src pileup.Source, caller *Caller, sites []Site, parallelism int, failFast bool) ([]Result, error) {
	return callSites(ctx, src, caller, nil, sites, parallelism, failFast)
}

func callSites(ctx context.Context, src pileup.Source, caller *Caller, ref fasta.Fasta, sites []Site, parallelism int, failFast bool) ([]Result, error) {
	results := make([]Result, len(sites))
	nSite := len(sites)
	if nSite == 0 {
		return results, nil
	}
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > nSite {
		parallelism = nSite
	}
	log.Debug.Printf("genotype.CallSites: calling %d sites (%d jobs)", nSite, parallelism)
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * nSite) / parallelism
		endIdx := ((jobIdx + 1) * nSite) / parallelism
		for i := startIdx; i < endIdx; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = callSite(ctx, src, caller, ref, sites[i])
			if e := results[i].Err; e != nil {
				log.Error.Printf("genotype.CallSites: %s:%d not called: %v", sites[i].Chrom, sites[i].Pos, e)
				if failFast {
					return e
				}
			}
		}
		return nil
	})
	return results, err
}

// siteFilter returns a predicate selecting the sites inside the requested
// region or BED intervals, or nil if there is no restriction.
func siteFilter(ctx context.Context, opts *Opts) (func(Site) bool, error) {
	if opts.Region != "" && opts.BedPath != "" {
		return nil, errors.E(errors.Invalid, "-region and -bed cannot be used together")
	}
	if opts.Region != "" {
		entry, err := interval.ParseRegionString(opts.Region)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		return func(s Site) bool { return entry.Contains(s.Chrom, s.pos0()) }, nil
	}
	if opts.BedPath != "" {
		set, err := interval.LoadBED(ctx, opts.BedPath)
		if err != nil {
			return nil, errors.E(err, "loading", opts.BedPath)
		}
		return func(s Site) bool { return set.ContainsByName(s.Chrom, s.pos0()) }, nil
	}
	return nil, nil
}

// newCallerFromOpts translates the string-valued command-line options into
// CallerOpts.
func newCallerFromOpts(opts *Opts) (*Caller, error) {
	model, err := ParseModel(opts.Model)
	if err != nil {
		return nil, err
	}
	policy, err := ParseRefEvidencePolicy(opts.RefEvidence)
	if err != nil {
		return nil, err
	}
	return NewCaller(CallerOpts{
		Model:             model,
		RefEvidence:       policy,
		FallbackErrorProb: opts.FallbackErrorProb,
		Rescale:           opts.Rescale,
	})
}

// Run genotypes the candidate sites in sitesPath against the reads in the
// BAM at bamPath, and writes the result table to outPath.
func Run(ctx context.Context, bamPath, sitesPath, outPath string, opts *Opts) (err error) {
	caller, err := newCallerFromOpts(opts)
	if err != nil {
		return err
	}
	keep, err := siteFilter(ctx, opts)
	if err != nil {
		return err
	}
	sites, err := ReadSitesFromPath(ctx, sitesPath)
	if err != nil {
		return errors.E(err, "reading", sitesPath)
	}
	if keep != nil {
		nSite := len(sites)
		kept := sites[:0]
		for _, s := range sites {
			if keep(s) {
				kept = append(kept, s)
			}
		}
		sites = kept
		log.Printf("genotype.Run: %d of %d sites inside the requested region", len(sites), nSite)
	}

	var ref fasta.Fasta
	if opts.FastaPath != "" {
		fa, e := fasta.Open(ctx, opts.FastaPath)
		if e != nil {
			return errors.E(e, "opening", opts.FastaPath)
		}
		defer func() {
			if e := fa.Close(ctx); e != nil && err == nil {
				err = e
			}
		}()
		ref = fa
	}

	provider := bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: opts.BamIndexPath})
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()
	src, err := pileup.NewBAMSource(provider, pileup.BAMSourceOpts{
		FlagExclude:   opts.FlagExclude,
		MinBaseQual:   opts.MinBaseQual,
		IgnoreOrphans: opts.IgnoreOrphans,
		MaxReadSpan:   opts.MaxReadSpan,
	})
	if err != nil {
		return err
	}

	log.Printf("genotype.Run: calling %d sites", len(sites))
	results, err := callSites(ctx, src, caller, ref, sites, opts.Parallelism, opts.FailFast)
	if err != nil {
		return err
	}
	var nInvalid, nMissing, nUnderflow, nOther int
	for _, r := range results {
		switch {
		case r.Err == nil:
		case IsInvalidSite(r.Err):
			nInvalid++
		case IsMissingEvidence(r.Err):
			nMissing++
		case IsNumericUnderflow(r.Err):
			nUnderflow++
		default:
			nOther++
		}
	}
	if nFailed := nInvalid + nMissing + nUnderflow + nOther; nFailed > 0 {
		log.Printf("genotype.Run: %d sites not called (%d invalid, %d missing evidence, %d underflow, %d other)",
			nFailed, nInvalid, nMissing, nUnderflow, nOther)
	}
	if err = WriteResultsToPath(ctx, outPath, results, opts.SkipFailed, opts.Parallelism); err != nil {
		return errors.E(err, fmt.Sprintf("writing %s", outPath))
	}
	log.Printf("genotype.Run: wrote %s", outPath)
	return nil
}
