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

/*
Package genotype computes a diploid genotype call for each candidate SNP site
from the reads piled up over it.

For every site, Aggregate first summarizes the pileup column into an Evidence
record (reads supporting the reference and alternate alleles, total overlap
depth, and a base-call error probability).  A Caller then turns the Evidence
and the site's Hardy-Weinberg priors into posteriors for the three genotypes
ref/ref, alt/alt and ref/alt, and picks the most probable one.

The default model reproduces the legacy scoring exactly:

  - A single error probability, taken from the last ref-supporting read in
    pileup order, stands in for every read.
  - Ref-supporting reads only contribute when they outnumber alt-supporting
    reads.
  - Each genotype's prior is added to its log-likelihood as-is (not as a
    logarithm) before exponentiation.

CallerOpts selects per-read error probabilities, unconditional ref evidence
and rescaled normalization instead.
*/
package genotype
