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
)

// Entry is one read's contribution to a pileup column.
type Entry struct {
	// Base is the called base (ASCII) at the column's position.  Only
	// meaningful when HasBase is true.
	Base byte
	// Qual is the phred-scaled base quality of Base.
	Qual byte
	// HasBase is false when the read spans the position without a base call
	// there (a deletion or reference skip).
	HasBase bool
}

// Column is the pileup at a single 0-based reference position.  Entries are
// in pileup order, i.e. the order in which the source encountered the reads.
type Column struct {
	Pos     PosType
	Entries []Entry
}

// Source is the read-evidence capability needed for genotype calling.  Any
// alignment backend (indexed BAM, in-memory fixture, remote service) can
// implement it.  Implementations must be safe for concurrent use.
type Source interface {
	// Overlapping returns the number of reads whose alignment intersects the
	// single-base window [pos0, pos0+1) on refName.
	Overlapping(ctx context.Context, refName string, pos0 PosType) (int, error)

	// Column returns the pileup column located exactly at pos0 on refName.
	// found is false if no read in the pileup covers the position.
	Column(ctx context.Context, refName string, pos0 PosType) (col Column, found bool, err error)
}
