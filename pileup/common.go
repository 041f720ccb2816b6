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
	"math"

	"github.com/grailbio/snpcall/interval"
)

// Common pileup components.

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = interval.PosTypeMax

// Seq8ToASCIITable is the .bam seq nibble -> ASCII mapping.
var Seq8ToASCIITable = [...]byte{'=', 'A', 'C', 'M', 'G', 'R', 'S', 'V', 'T', 'W', 'Y', 'H', 'K', 'D', 'B', 'N'}

// Qual scores below nQual are served from a precomputed table.
const nQual = 96

// errProbTable[q] is the base-call error probability 10^(-q/10).
var errProbTable [nQual]float64

func init() {
	for i := range errProbTable {
		errProbTable[i] = math.Pow(10, -float64(i)/10.0)
	}
}

// PhredToErrProb converts a phred-scaled base quality to an error
// probability.
func PhredToErrProb(qual byte) float64 {
	if qual >= nQual {
		return math.Pow(10, -float64(qual)/10.0)
	}
	return errProbTable[qual]
}
