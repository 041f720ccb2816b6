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
package genotype_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/grailbio/snpcall/pileup/genotype"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestNewSite(t *testing.T) {
	tests := []struct {
		name    string
		chrom   string
		pos     int
		ref     string
		alt     string
		maf     float64
		wantErr bool
	}{
		{"valid", "chr1", 100, "A", "G", 0.1, false},
		{"lowercase", "chr1", 100, "a", "g", 0.1, false},
		{"maf_zero", "chr1", 100, "A", "G", 0, false},
		{"maf_one", "chr1", 100, "A", "G", 1, false},
		{"maf_negative", "chr1", 100, "A", "G", -0.01, true},
		{"maf_above_one", "chr1", 100, "A", "G", 1.01, true},
		{"maf_nan", "chr1", 100, "A", "G", math.NaN(), true},
		{"multibase_ref", "chr1", 100, "AT", "G", 0.1, true},
		{"empty_alt", "chr1", 100, "A", "", 0.1, true},
		{"same_alleles", "chr1", 100, "A", "a", 0.1, true},
		{"zero_pos", "chr1", 0, "A", "G", 0.1, true},
		{"empty_chrom", "", 100, "A", "G", 0.1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, err := genotype.NewSite(tt.chrom, tt.pos, tt.ref, tt.alt, tt.maf)
			if tt.wantErr {
				assert.NotNil(t, err)
				expect.True(t, genotype.IsInvalidSite(err), "%v", err)
				return
			}
			assert.NoError(t, err)
			expect.EQ(t, len(site.Ref), 1)
			expect.True(t, site.Ref[0] >= 'A' && site.Ref[0] <= 'Z')
		})
	}
}

func checkPriors(t *testing.T, maf float64) {
	p, err := genotype.NewPriors(maf)
	assert.NoError(t, err)
	expect.GE(t, p.Ref, 0.0)
	expect.GE(t, p.Alt, 0.0)
	expect.GE(t, p.Het, 0.0)
	expect.True(t, math.Abs(p.Ref+p.Alt+p.Het-1) < 1e-12, "maf=%v priors=%+v", maf, p)
}

func TestPriorsSumToOne(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		checkPriors(t, float64(i)/1000)
	}
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		checkPriors(t, r.Float64())
	}
	for _, maf := range []float64{1e-300, 1e-17, 1e-9, 1 - 1e-9, 1 - 1e-16} {
		checkPriors(t, maf)
	}
}

func TestPriorsValues(t *testing.T) {
	p, err := genotype.NewPriors(0.1)
	assert.NoError(t, err)
	expect.True(t, math.Abs(p.Ref-0.81) < 1e-15)
	expect.True(t, math.Abs(p.Alt-0.01) < 1e-15)
	expect.True(t, math.Abs(p.Het-0.18) < 1e-15)

	for _, maf := range []float64{-0.5, 1.5, math.NaN(), math.Inf(1)} {
		_, err := genotype.NewPriors(maf)
		expect.True(t, genotype.IsInvalidSite(err), "maf=%v", maf)
	}
}

func TestGenotypeFormat(t *testing.T) {
	site, err := genotype.NewSite("chr1", 10, "A", "G", 0.2)
	assert.NoError(t, err)
	expect.EQ(t, genotype.HomRef.Format(site), "AA")
	expect.EQ(t, genotype.HomAlt.Format(site), "GG")
	expect.EQ(t, genotype.Het.Format(site), "AG")
	expect.EQ(t, genotype.Genotype(7).Format(site), ".")
	expect.EQ(t, genotype.Het.String(), "het")
}
