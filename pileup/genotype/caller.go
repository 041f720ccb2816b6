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
	"math"

	"github.com/grailbio/base/errors"
)

// Model selects how read evidence turns into genotype log-likelihoods.
type Model int

const (
	// ModelLegacy scores every read with the single error probability carried
	// by Evidence.ErrorProb.
	ModelLegacy Model = iota
	// ModelPerRead scores each read in Evidence.Reads with its own error
	// probability.
	ModelPerRead
)

// RefEvidencePolicy decides when ref-supporting reads enter the likelihoods.
type RefEvidencePolicy int

const (
	// RefEvidenceGated counts ref-supporting reads only when they outnumber
	// alt-supporting reads.
	RefEvidenceGated RefEvidencePolicy = iota
	// RefEvidenceAlways counts ref-supporting reads unconditionally.
	RefEvidenceAlways
)

var modelNames = map[string]Model{
	"legacy":   ModelLegacy,
	"per-read": ModelPerRead,
}

var refEvidenceNames = map[string]RefEvidencePolicy{
	"gated":  RefEvidenceGated,
	"always": RefEvidenceAlways,
}

// ParseModel parses "legacy" or "per-read".
func ParseModel(name string) (Model, error) {
	m, ok := modelNames[name]
	if !ok {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown model %q", name))
	}
	return m, nil
}

// ParseRefEvidencePolicy parses "gated" or "always".
func ParseRefEvidencePolicy(name string) (RefEvidencePolicy, error) {
	p, ok := refEvidenceNames[name]
	if !ok {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown ref-evidence policy %q", name))
	}
	return p, nil
}

// CallerOpts configures a Caller.  The zero value reproduces the legacy
// scoring.
type CallerOpts struct {
	Model       Model
	RefEvidence RefEvidencePolicy
	// FallbackErrorProb, when positive, is used by ModelLegacy for sites
	// whose evidence has no defined error probability (no ref-supporting
	// read).  When zero, such sites fail with a MissingEvidenceError.
	FallbackErrorProb float64
	// Rescale shifts the three scores by their maximum before
	// exponentiation.  Posteriors are then defined for any finite scores,
	// instead of failing with a NumericUnderflowError when all three
	// exponentials underflow.
	Rescale bool
}

// Caller computes genotype posteriors.  It holds no per-site state, so a
// single Caller may be shared by concurrent goroutines.
type Caller struct {
	opts CallerOpts
}

// NewCaller validates opts and returns a Caller.
func NewCaller(opts CallerOpts) (*Caller, error) {
	if opts.Model != ModelLegacy && opts.Model != ModelPerRead {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("genotype.NewCaller: unknown model %d", opts.Model))
	}
	if opts.RefEvidence != RefEvidenceGated && opts.RefEvidence != RefEvidenceAlways {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("genotype.NewCaller: unknown ref-evidence policy %d", opts.RefEvidence))
	}
	if !(opts.FallbackErrorProb >= 0 && opts.FallbackErrorProb < 1) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("genotype.NewCaller: fallback error probability %v not in [0, 1)", opts.FallbackErrorProb))
	}
	return &Caller{opts: opts}, nil
}

// Call is the genotype call for one site.
type Call struct {
	PosteriorRef, PosteriorAlt, PosteriorHet float64
	Genotype                                 Genotype
}

// Posterior returns the posterior probability of g.
func (c Call) Posterior(g Genotype) float64 {
	switch g {
	case HomRef:
		return c.PosteriorRef
	case HomAlt:
		return c.PosteriorAlt
	case Het:
		return c.PosteriorHet
	}
	return 0
}

// logLikelihoods accumulates per-genotype log-likelihoods, indexed by
// Genotype.
type logLikelihoods [nGenotype]float64

// add folds in one read supporting allele a, whose base call is wrong with
// probability p.  A read matching the hypothesized homozygous allele is
// error-free; one matching the other allele is an error; under
// heterozygosity either allele is drawn with probability 1/2.
func (ll *logLikelihoods) add(a Allele, p float64) {
	match := math.Log(1 - p)
	mismatch := math.Log(p)
	het := math.Log((1-p)/2 + p/2)
	if a == AlleleRef {
		ll[HomRef] += match
		ll[HomAlt] += mismatch
	} else {
		ll[HomAlt] += match
		ll[HomRef] += mismatch
	}
	ll[Het] += het
}

// useRefEvidence returns true if ref-supporting reads enter the likelihoods.
func (c *Caller) useRefEvidence(ev *Evidence) bool {
	return c.opts.RefEvidence == RefEvidenceAlways || ev.RefCount > ev.AltCount
}

// legacyLogLikelihoods scores RefCount ref reads and then AltCount alt reads,
// all with error probability p.  Terms are added one read at a time, in that
// order, so that results are bit-identical to the legacy implementation.
func (c *Caller) legacyLogLikelihoods(ev *Evidence, p float64) (ll logLikelihoods) {
	if c.useRefEvidence(ev) {
		for i := 0; i < ev.RefCount; i++ {
			ll.add(AlleleRef, p)
		}
	}
	for i := 0; i < ev.AltCount; i++ {
		ll.add(AlleleAlt, p)
	}
	return
}

// perReadLogLikelihoods scores each read with its own error probability, ref
// reads first.
func (c *Caller) perReadLogLikelihoods(ev *Evidence) (ll logLikelihoods) {
	if c.useRefEvidence(ev) {
		for _, r := range ev.Reads {
			if r.Allele == AlleleRef {
				ll.add(AlleleRef, r.ErrorProb)
			}
		}
	}
	for _, r := range ev.Reads {
		if r.Allele == AlleleAlt {
			ll.add(AlleleAlt, r.ErrorProb)
		}
	}
	return
}

func validErrorProb(p float64) bool {
	return p >= 0 && p <= 1
}

// Call computes the genotype posteriors of a site from its priors and read
// evidence, and selects the most probable genotype.  Ties are broken in the
// order HomRef, HomAlt, Het.
func (c *Caller) Call(priors Priors, ev Evidence) (Call, error) {
	if !ev.ColumnFound {
		return Call{}, &MissingEvidenceError{Chrom: ev.Chrom, Pos: ev.Pos, Reason: "no pileup column at position"}
	}
	if ev.RefCount+ev.AltCount == 0 {
		return Call{}, &MissingEvidenceError{Chrom: ev.Chrom, Pos: ev.Pos, Reason: "no reads support either allele"}
	}
	var ll logLikelihoods
	switch c.opts.Model {
	case ModelPerRead:
		if len(ev.Reads) != ev.RefCount+ev.AltCount {
			return Call{}, errors.E(errors.Invalid, fmt.Sprintf("genotype.Call: %s:%d has %d per-read entries for %d supporting reads",
				ev.Chrom, ev.Pos, len(ev.Reads), ev.RefCount+ev.AltCount))
		}
		for _, r := range ev.Reads {
			if !validErrorProb(r.ErrorProb) {
				return Call{}, errors.E(errors.Invalid, fmt.Sprintf("genotype.Call: %s:%d: error probability %v not in [0, 1]", ev.Chrom, ev.Pos, r.ErrorProb))
			}
		}
		ll = c.perReadLogLikelihoods(&ev)
	default:
		p := ev.ErrorProb
		if !ev.ErrorProbDefined {
			if c.opts.FallbackErrorProb <= 0 {
				return Call{}, &MissingEvidenceError{Chrom: ev.Chrom, Pos: ev.Pos, Reason: "no ref-supporting read to define an error probability"}
			}
			p = c.opts.FallbackErrorProb
		}
		if !validErrorProb(p) {
			return Call{}, errors.E(errors.Invalid, fmt.Sprintf("genotype.Call: %s:%d: error probability %v not in [0, 1]", ev.Chrom, ev.Pos, p))
		}
		ll = c.legacyLogLikelihoods(&ev, p)
	}
	return c.posteriors(priors, ll, &ev)
}

// posteriors combines log-likelihoods with priors and normalizes.  The prior
// is added to the log-likelihood directly rather than as its logarithm.
func (c *Caller) posteriors(priors Priors, ll logLikelihoods, ev *Evidence) (Call, error) {
	scores := [nGenotype]float64{
		HomRef: ll[HomRef] + priors.Ref,
		HomAlt: ll[HomAlt] + priors.Alt,
		Het:    ll[Het] + priors.Het,
	}
	shift := 0.0
	if c.opts.Rescale {
		shift = math.Inf(-1)
		for _, s := range scores {
			if s > shift {
				shift = s
			}
		}
		if math.IsInf(shift, -1) {
			return Call{}, &NumericUnderflowError{Chrom: ev.Chrom, Pos: ev.Pos, Scores: scores}
		}
	}
	var terms [nGenotype]float64
	total := 0.0
	for g, s := range scores {
		terms[g] = math.Exp(s - shift)
		total += terms[g]
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return Call{}, &NumericUnderflowError{Chrom: ev.Chrom, Pos: ev.Pos, Scores: scores}
	}
	call := Call{
		PosteriorRef: terms[HomRef] / total,
		PosteriorAlt: terms[HomAlt] / total,
		PosteriorHet: terms[Het] / total,
	}
	call.Genotype = selectGenotype(call)
	return call, nil
}

// selectGenotype returns the first genotype, in HomRef, HomAlt, Het order,
// whose posterior equals the maximum.
func selectGenotype(call Call) Genotype {
	maxPost := math.Max(call.PosteriorRef, math.Max(call.PosteriorAlt, call.PosteriorHet))
	for g := HomRef; g < nGenotype; g++ {
		if call.Posterior(g) == maxPost {
			return g
		}
	}
	return Het
}
