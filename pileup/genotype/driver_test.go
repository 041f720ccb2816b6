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
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/snpcall/encoding/fasta"
	"github.com/grailbio/snpcall/pileup/genotype"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func testSites() ([]genotype.Site, *memSource) {
	src := newMemSource().
		add("chr1", 100, bases('G', 30, 10)...).
		add("chr1", 200, append(bases('A', 30, 6), bases('C', 30, 5)...)...).
		add("chr1", 300, bases('T', 30, 12)...).
		add("chr2", 50, base('C', 30), deletion)
	sites := []genotype.Site{
		{Chrom: "chr1", Pos: 100, Ref: "A", Alt: "G", MAF: 0.1},
		{Chrom: "chr1", Pos: 200, Ref: "A", Alt: "C", MAF: 0.5},
		{Chrom: "chr1", Pos: 250, Ref: "A", Alt: "C", MAF: 0.5},
		{Chrom: "chr1", Pos: 300, Ref: "T", Alt: "G", MAF: 0.3},
		{Chrom: "chr1", Pos: 300, Ref: "T", Alt: "G", MAF: 1.5},
		{Chrom: "chr2", Pos: 50, Ref: "A", Alt: "G", MAF: 0.2},
	}
	return sites, src
}

func TestCallSites(t *testing.T) {
	sites, src := testSites()
	caller := newCaller(t, genotype.CallerOpts{FallbackErrorProb: 0.001})
	results, err := genotype.CallSites(context.Background(), src, caller, sites, 3, false)
	assert.NoError(t, err)
	assert.EQ(t, len(results), len(sites))
	for i, r := range results {
		expect.EQ(t, r.Site, sites[i])
	}

	expect.NoError(t, results[0].Err)
	expect.EQ(t, results[0].Call.Genotype.Format(sites[0]), "GG")
	expect.EQ(t, results[0].Evidence.OverlapCount, 10)

	expect.NoError(t, results[1].Err)
	expect.EQ(t, results[1].Call.Genotype, genotype.Het)

	// No column at chr1:250.
	expect.True(t, genotype.IsMissingEvidence(results[2].Err), "%v", results[2].Err)
	expect.False(t, results[2].Evidence.ColumnFound)

	expect.NoError(t, results[3].Err)
	expect.EQ(t, results[3].Call.Genotype.Format(sites[3]), "TT")

	// A bad MAF fails only its own site, before any reads are examined.
	expect.True(t, genotype.IsInvalidSite(results[4].Err), "%v", results[4].Err)
	expect.True(t, results[4].Evidence == nil)

	// chr2:50 has reads, but none supports either allele.
	expect.True(t, genotype.IsMissingEvidence(results[5].Err), "%v", results[5].Err)
	expect.EQ(t, results[5].Evidence.OverlapCount, 2)
}

// errorLog collects the messages logged at Error level.
type errorLog struct {
	mu       sync.Mutex
	messages []string
}

func (l *errorLog) Level() log.Level { return log.Error }

func (l *errorLog) Output(calldepth int, level log.Level, s string) error {
	if level == log.Error {
		l.mu.Lock()
		l.messages = append(l.messages, s)
		l.mu.Unlock()
	}
	return nil
}

func TestCallSitesLogsFailures(t *testing.T) {
	out := &errorLog{}
	defer log.SetOutputter(log.SetOutputter(out))
	sites, src := testSites()
	caller := newCaller(t, genotype.CallerOpts{FallbackErrorProb: 0.001})
	_, err := genotype.CallSites(context.Background(), src, caller, sites, 1, false)
	assert.NoError(t, err)
	assert.EQ(t, len(out.messages), 3)
	for i, want := range []struct{ locus, cause string }{
		{"chr1:250 not called", "missing evidence"},
		{"chr1:300 not called", "invalid site"},
		{"chr2:50 not called", "missing evidence"},
	} {
		expect.HasSubstr(t, out.messages[i], want.locus)
		expect.HasSubstr(t, out.messages[i], want.cause)
	}
}

func TestCallSitesDeterministic(t *testing.T) {
	sites, src := testSites()
	caller := newCaller(t, genotype.CallerOpts{FallbackErrorProb: 0.001})
	serial, err := genotype.CallSites(context.Background(), src, caller, sites, 1, false)
	assert.NoError(t, err)
	for _, parallelism := range []int{0, 2, 4, 100} {
		parallel, err := genotype.CallSites(context.Background(), src, caller, sites, parallelism, false)
		assert.NoError(t, err)
		assert.EQ(t, len(parallel), len(serial))
		for i := range serial {
			expect.EQ(t, parallel[i].Site, serial[i].Site)
			expect.EQ(t, parallel[i].Call, serial[i].Call)
			expect.EQ(t, parallel[i].Err == nil, serial[i].Err == nil)
		}
	}
}

func TestCallSitesEmpty(t *testing.T) {
	results, err := genotype.CallSites(context.Background(), newMemSource(), newCaller(t, genotype.CallerOpts{}), nil, 4, true)
	assert.NoError(t, err)
	expect.EQ(t, len(results), 0)
}

func TestCallSitesFailFast(t *testing.T) {
	sites, src := testSites()
	caller := newCaller(t, genotype.CallerOpts{FallbackErrorProb: 0.001})
	_, err := genotype.CallSites(context.Background(), src, caller, sites, 1, true)
	expect.True(t, genotype.IsMissingEvidence(err), "%v", err)
}

func TestCallSitesCanceled(t *testing.T) {
	sites, src := testSites()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := genotype.CallSites(ctx, src, newCaller(t, genotype.CallerOpts{}), sites, 2, false)
	expect.EQ(t, err, context.Canceled)
}

// writeIndexedBAM writes recs to bamPath and a matching index to
// bamPath+".bai".
func writeIndexedBAM(t *testing.T, bamPath string, header *sam.Header, recs []*sam.Record) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, bamPath)
	assert.NoError(t, err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	assert.NoError(t, err)
	for _, r := range recs {
		assert.NoError(t, w.Write(r))
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, out.Close(ctx))

	in, err := file.Open(ctx, bamPath)
	assert.NoError(t, err)
	r, err := bam.NewReader(in.Reader(ctx), 1)
	assert.NoError(t, err)
	var index bam.Index
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		assert.NoError(t, index.Add(rec, r.LastChunk()))
	}
	assert.NoError(t, r.Close())
	assert.NoError(t, in.Close(ctx))

	idx, err := file.Create(ctx, bamPath+".bai")
	assert.NoError(t, err)
	assert.NoError(t, bam.WriteIndex(idx.Writer(ctx), &index))
	assert.NoError(t, idx.Close(ctx))
}

// pileupRecords returns n reads of length 20 starting 10 bases before pos0,
// whose base at pos0 is bases[i%len(bases)].
func pileupRecords(t *testing.T, ref *sam.Reference, pos0 int, bases string, n int) []*sam.Record {
	var recs []*sam.Record
	for i := 0; i < n; i++ {
		seq := []byte(strings.Repeat("T", 20))
		seq[10] = bases[i%len(bases)]
		qual := make([]byte, len(seq))
		for j := range qual {
			qual[j] = 30
		}
		rec, err := sam.NewRecord("r", ref, nil, pos0-10, -1, 0, 60,
			[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(seq))}, seq, qual, nil)
		assert.NoError(t, err)
		recs = append(recs, rec)
	}
	return recs
}

func TestRun(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	chr1, err := sam.NewReference("chr1", "", "", 10000, nil, nil)
	assert.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 10000, nil, nil)
	assert.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	assert.NoError(t, err)
	header.SortOrder = sam.Coordinate

	var recs []*sam.Record
	// chr1:1001 (pos0 1000): all G.
	recs = append(recs, pileupRecords(t, chr1, 1000, "G", 10)...)
	// chr1:5001: six A, five C.
	recs = append(recs, pileupRecords(t, chr1, 5000, "AAAAAACCCCC", 11)...)
	// chr2:2001: all A.
	recs = append(recs, pileupRecords(t, chr2, 2000, "A", 8)...)
	bamPath := filepath.Join(tmpdir, "reads.bam")
	writeIndexedBAM(t, bamPath, header, recs)

	sitesPath := filepath.Join(tmpdir, "sites.tsv")
	assert.NoError(t, ioutil.WriteFile(sitesPath, []byte(strings.Join([]string{
		"chr\tpos\tref\talt\tmaf",
		"chr1\t1001\tA\tG\t0.1",
		"chr1\t3001\tC\tT\t0.2",
		"chr1\t5001\tA\tC\t0.5",
		"chr2\t2001\tA\tT\t0.05",
		"chr2\t2001\tA\tT\tn/a",
		"",
	}, "\n")), 0644))

	opts := genotype.DefaultOpts
	opts.FallbackErrorProb = 0.001
	opts.Parallelism = 2
	outPath := filepath.Join(tmpdir, "out.tsv")
	assert.NoError(t, genotype.Run(ctx, bamPath, sitesPath, outPath, &opts))

	data, err := ioutil.ReadFile(outPath)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.EQ(t, len(lines), 6)
	expect.EQ(t, lines[0], "chromosome\tposition\tref_allele\talt_allele\tputative_genotype\t"+
		"ref_posterior_probability\talt_posterior_probability\thet_posterior_probability\tn_reads")
	fields := func(line string) []string { return strings.Split(line, "\t") }
	expect.EQ(t, fields(lines[1])[:5], []string{"chr1", "1001", "A", "G", "GG"})
	expect.EQ(t, fields(lines[1])[8], "10")
	expect.EQ(t, fields(lines[2]), []string{"chr1", "3001", "C", "T", ".", ".", ".", ".", "0"})
	expect.EQ(t, fields(lines[3])[:5], []string{"chr1", "5001", "A", "C", "AC"})
	expect.EQ(t, fields(lines[3])[8], "11")
	expect.EQ(t, fields(lines[4])[:5], []string{"chr2", "2001", "A", "T", "AA"})
	expect.EQ(t, fields(lines[5]), []string{"chr2", "2001", "A", "T", ".", ".", ".", ".", "."})

	// Restricting to chr2 and dropping failed rows leaves a single call.
	opts.Region = "chr2"
	opts.SkipFailed = true
	outPath = filepath.Join(tmpdir, "out.tsv.gz")
	assert.NoError(t, genotype.Run(ctx, bamPath, sitesPath, outPath, &opts))
	gzOut, err := os.Open(outPath)
	assert.NoError(t, err)
	defer gzOut.Close() // nolint: errcheck
	gz, err := gzip.NewReader(gzOut)
	assert.NoError(t, err)
	data, err = ioutil.ReadAll(gz)
	assert.NoError(t, err)
	lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.EQ(t, len(lines), 2)
	expect.EQ(t, fields(lines[1])[:5], []string{"chr2", "2001", "A", "T", "AA"})

	// With a reference genome, chr2:2001 no longer matches its ref allele.
	opts.Region = ""
	opts.SkipFailed = false
	fastaPath := filepath.Join(tmpdir, "ref.fa")
	assert.NoError(t, ioutil.WriteFile(fastaPath, []byte(
		">chr1\n"+strings.Repeat("A", 10000)+"\n>chr2\n"+strings.Repeat("C", 10000)+"\n"), 0644))
	opts.FastaPath = fastaPath
	outPath = filepath.Join(tmpdir, "checked.tsv")
	assert.NoError(t, genotype.Run(ctx, bamPath, sitesPath, outPath, &opts))
	data, err = ioutil.ReadFile(outPath)
	assert.NoError(t, err)
	lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.EQ(t, len(lines), 6)
	expect.EQ(t, fields(lines[1])[:5], []string{"chr1", "1001", "A", "G", "GG"})
	// chr1:3001 has ref C against an all-A chr1.
	expect.EQ(t, fields(lines[2]), []string{"chr1", "3001", "C", "T", ".", ".", ".", ".", "."})
	expect.EQ(t, fields(lines[4]), []string{"chr2", "2001", "A", "T", ".", ".", ".", ".", "."})
	opts.FastaPath = ""

	// -region and -bed are exclusive.
	opts.Region = "chr2"
	opts.BedPath = filepath.Join(tmpdir, "none.bed")
	expect.NotNil(t, genotype.Run(ctx, bamPath, sitesPath, outPath, &opts))
}

func TestCheckRefAllele(t *testing.T) {
	ref, err := fasta.New(strings.NewReader(">chr1\nACGTNacgt\n"))
	assert.NoError(t, err)
	tests := []struct {
		site genotype.Site
		ok   bool
	}{
		{genotype.Site{Chrom: "chr1", Pos: 1, Ref: "A", Alt: "G"}, true},
		{genotype.Site{Chrom: "chr1", Pos: 2, Ref: "A", Alt: "G"}, false},
		{genotype.Site{Chrom: "chr1", Pos: 5, Ref: "T", Alt: "G"}, true},
		{genotype.Site{Chrom: "chr1", Pos: 6, Ref: "A", Alt: "G"}, true},
		{genotype.Site{Chrom: "chr1", Pos: 8, Ref: "g", Alt: "A"}, true},
		{genotype.Site{Chrom: "chr1", Pos: 10, Ref: "A", Alt: "G"}, false},
		{genotype.Site{Chrom: "chr2", Pos: 1, Ref: "A", Alt: "G"}, false},
	}
	for _, tt := range tests {
		err := genotype.CheckRefAllele(ref, tt.site)
		if tt.ok {
			expect.NoError(t, err, "%v", tt.site)
		} else {
			expect.True(t, genotype.IsInvalidSite(err), "%v: %v", tt.site, err)
		}
	}
}

func TestRunMissingInputs(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	opts := genotype.DefaultOpts
	err := genotype.Run(ctx, filepath.Join(tmpdir, "x.bam"), filepath.Join(tmpdir, "missing.tsv"), filepath.Join(tmpdir, "out.tsv"), &opts)
	expect.NotNil(t, err)

	opts.Model = "bogus"
	err = genotype.Run(ctx, filepath.Join(tmpdir, "x.bam"), filepath.Join(tmpdir, "missing.tsv"), filepath.Join(tmpdir, "out.tsv"), &opts)
	expect.NotNil(t, err)
}
