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

	"github.com/pkg/errors"
)

// InvalidSiteError reports a candidate site that cannot be scored as given:
// MAF outside [0, 1], or alleles that are not single distinct bases.
type InvalidSiteError struct {
	Site   Site
	Reason string
}

func (e *InvalidSiteError) Error() string {
	if e.Site.Chrom == "" {
		return "invalid site: " + e.Reason
	}
	return fmt.Sprintf("invalid site %s:%d: %s", e.Site.Chrom, e.Site.Pos, e.Reason)
}

// MissingEvidenceError reports a site without enough read evidence to be
// scored: no pileup column at the position, no reads supporting either
// allele, or no defined base-call error probability.
type MissingEvidenceError struct {
	Chrom  string
	Pos    int
	Reason string
}

func (e *MissingEvidenceError) Error() string {
	return fmt.Sprintf("missing evidence at %s:%d: %s", e.Chrom, e.Pos, e.Reason)
}

// NumericUnderflowError reports a site whose three posterior terms all
// underflowed to zero, leaving the posteriors undefined.
type NumericUnderflowError struct {
	Chrom  string
	Pos    int
	Scores [nGenotype]float64
}

func (e *NumericUnderflowError) Error() string {
	return fmt.Sprintf("posterior underflow at %s:%d (scores %v)", e.Chrom, e.Pos, e.Scores)
}

// IsInvalidSite returns true if the cause of err is an *InvalidSiteError.
func IsInvalidSite(err error) bool {
	_, ok := errors.Cause(err).(*InvalidSiteError)
	return ok
}

// IsMissingEvidence returns true if the cause of err is a
// *MissingEvidenceError.
func IsMissingEvidence(err error) bool {
	_, ok := errors.Cause(err).(*MissingEvidenceError)
	return ok
}

// IsNumericUnderflow returns true if the cause of err is a
// *NumericUnderflowError.
func IsNumericUnderflow(err error) bool {
	_, ok := errors.Cause(err).(*NumericUnderflowError)
	return ok
}
