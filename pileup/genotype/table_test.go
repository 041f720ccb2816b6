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
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/snpcall/pileup/genotype"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestReadSites(t *testing.T) {
	in := strings.Join([]string{
		"# candidate sites",
		"chr\tpos\tref\talt\tmaf",
		"chr1\t12345\tA\tg\t0.1",
		"chrX\t7\tc\tT\t0",
		"chr2\t99\tA\tG\tnot_a_number",
		"",
	}, "\n")
	sites, err := genotype.ReadSites(strings.NewReader(in))
	assert.NoError(t, err)
	assert.EQ(t, len(sites), 3)
	expect.EQ(t, sites[0], genotype.Site{Chrom: "chr1", Pos: 12345, Ref: "A", Alt: "G", MAF: 0.1})
	expect.EQ(t, sites[1], genotype.Site{Chrom: "chrX", Pos: 7, Ref: "C", Alt: "T", MAF: 0})
	expect.True(t, math.IsNaN(sites[2].MAF))
	expect.True(t, genotype.IsInvalidSite(sites[2].Validate()))
}

func TestReadSitesErrors(t *testing.T) {
	for _, in := range []string{
		// Missing maf column.
		"chr\tpos\tref\talt\nchr1\t5\tA\tG\n",
		// Non-integer position.
		"chr\tpos\tref\talt\tmaf\nchr1\tfive\tA\tG\t0.1\n",
	} {
		_, err := genotype.ReadSites(strings.NewReader(in))
		expect.NotNil(t, err, "%q", in)
	}
}

func TestReadSitesFromPath(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	results := []genotype.Result{{Site: genotype.Site{Chrom: "chr1", Pos: 5, Ref: "A", Alt: "T", MAF: 0.25}}}
	// A results table is not a sites table.
	path := filepath.Join(tmpdir, "results.tsv")
	assert.NoError(t, genotype.WriteResultsToPath(ctx, path, results, false, 1))
	_, err := genotype.ReadSitesFromPath(ctx, path)
	expect.NotNil(t, err)

	_, err = genotype.ReadSitesFromPath(ctx, filepath.Join(tmpdir, "missing.tsv"))
	expect.NotNil(t, err)
}

func TestWriteResults(t *testing.T) {
	site := genotype.Site{Chrom: "chr1", Pos: 100, Ref: "A", Alt: "G", MAF: 0.1}
	results := []genotype.Result{
		{
			Site:     site,
			Evidence: &genotype.Evidence{OverlapCount: 12},
			Call:     genotype.Call{PosteriorRef: 0.25, PosteriorAlt: 0.5, PosteriorHet: 0.25, Genotype: genotype.HomAlt},
		},
		{
			Site:     genotype.Site{Chrom: "chr1", Pos: 250, Ref: "C", Alt: "T", MAF: 0.2},
			Evidence: &genotype.Evidence{OverlapCount: 3},
			Err:      &genotype.MissingEvidenceError{Chrom: "chr1", Pos: 250, Reason: "no reads support either allele"},
		},
		{
			Site: genotype.Site{Chrom: "chr2", Pos: 1, Ref: "A", Alt: "A", MAF: 0.2},
			Err:  &genotype.InvalidSiteError{Reason: "same alleles"},
		},
	}
	var buf bytes.Buffer
	assert.NoError(t, genotype.WriteResults(&buf, results, false))
	header := "chromosome\tposition\tref_allele\talt_allele\tputative_genotype\t" +
		"ref_posterior_probability\talt_posterior_probability\thet_posterior_probability\tn_reads\n"
	expect.EQ(t, buf.String(), header+
		"chr1\t100\tA\tG\tGG\t0.25\t0.5\t0.25\t12\n"+
		"chr1\t250\tC\tT\t.\t.\t.\t.\t3\n"+
		"chr2\t1\tA\tA\t.\t.\t.\t.\t.\n")

	buf.Reset()
	assert.NoError(t, genotype.WriteResults(&buf, results, true))
	expect.EQ(t, buf.String(), header+"chr1\t100\tA\tG\tGG\t0.25\t0.5\t0.25\t12\n")
}

func TestWriteResultsFullPrecision(t *testing.T) {
	call := genotype.Call{PosteriorRef: 1.0 / 3, PosteriorAlt: 1e-300, PosteriorHet: 2.0 / 3, Genotype: genotype.Het}
	site := genotype.Site{Chrom: "chr1", Pos: 9, Ref: "T", Alt: "C", MAF: 0.5}
	var buf bytes.Buffer
	assert.NoError(t, genotype.WriteResults(&buf, []genotype.Result{{Site: site, Evidence: &genotype.Evidence{}, Call: call}}, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.EQ(t, len(lines), 2)
	fields := strings.Split(lines[1], "\t")
	expect.EQ(t, fields[4], "TC")
	for i, want := range []float64{call.PosteriorRef, call.PosteriorAlt, call.PosteriorHet} {
		var got float64
		_, err := fmt.Sscan(fields[5+i], &got)
		assert.NoError(t, err)
		expect.EQ(t, got, want)
	}
}
