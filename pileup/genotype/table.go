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
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// siteRow is one row of a candidate-site table.  MAF is kept as text so that
// an unparseable value invalidates only its own site.
type siteRow struct {
	Chrom string `tsv:"chr"`
	Pos   int64  `tsv:"pos"`
	Ref   string `tsv:"ref"`
	Alt   string `tsv:"alt"`
	MAF   string `tsv:"maf"`
}

// ReadSites reads a tab-separated candidate-site table with a "chr pos ref
// alt maf" header row.  Lines starting with '#' are skipped.  Rows are not
// validated, so that every row of the input yields a site in the output; see
// Site.Validate.
func ReadSites(r io.Reader) ([]Site, error) {
	tsvReader := tsv.NewReader(r)
	tsvReader.HasHeaderRow = true
	tsvReader.UseHeaderNames = true
	tsvReader.Comment = '#'

	var sites []Site
	for {
		var row siteRow
		if err := tsvReader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, "reading candidate sites")
		}
		maf, err := strconv.ParseFloat(strings.TrimSpace(row.MAF), 64)
		if err != nil {
			maf = math.NaN()
		}
		sites = append(sites, Site{
			Chrom: row.Chrom,
			Pos:   int(row.Pos),
			Ref:   strings.ToUpper(row.Ref),
			Alt:   strings.ToUpper(row.Alt),
			MAF:   maf,
		})
	}
	return sites, nil
}

// ReadSitesFromPath is a wrapper for ReadSites that takes a path instead of
// an io.Reader.  Gzipped tables are detected by extension.
func ReadSitesFromPath(ctx context.Context, path string) (sites []Site, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		reader = gz
	}
	return ReadSites(reader)
}

// Output columns, in order.
var resultColumns = []string{
	"chromosome",
	"position",
	"ref_allele",
	"alt_allele",
	"putative_genotype",
	"ref_posterior_probability",
	"alt_posterior_probability",
	"het_posterior_probability",
	"n_reads",
}

const missingValue = "."

func formatProb(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}

// WriteResults writes one row per result, in order.  Failed sites are
// written with "." in place of the genotype and posteriors (and of n_reads,
// if the reads were never counted), unless skipFailed is set, in which case
// they are left out.
func WriteResults(w io.Writer, results []Result, skipFailed bool) error {
	tsvw := tsv.NewWriter(w)
	tsvw.WriteString(strings.Join(resultColumns, "\t"))
	if err := tsvw.EndLine(); err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil && skipFailed {
			continue
		}
		tsvw.WriteString(r.Site.Chrom)
		tsvw.WriteString(strconv.Itoa(r.Site.Pos))
		tsvw.WriteString(r.Site.Ref)
		tsvw.WriteString(r.Site.Alt)
		if r.Err == nil {
			tsvw.WriteString(r.Call.Genotype.Format(r.Site))
			tsvw.WriteString(formatProb(r.Call.PosteriorRef))
			tsvw.WriteString(formatProb(r.Call.PosteriorAlt))
			tsvw.WriteString(formatProb(r.Call.PosteriorHet))
		} else {
			for i := 0; i < 4; i++ {
				tsvw.WriteString(missingValue)
			}
		}
		if r.Evidence != nil {
			tsvw.WriteUint32(uint32(r.Evidence.OverlapCount))
		} else {
			tsvw.WriteString(missingValue)
		}
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}

// WriteResultsToPath is a wrapper for WriteResults that creates path.  A path
// ending in ".gz" is bgzf-compressed.
func WriteResultsToPath(ctx context.Context, path string, results []Result, skipFailed bool, parallelism int) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, out, &err)
	if !strings.HasSuffix(path, ".gz") {
		return WriteResults(out.Writer(ctx), results, skipFailed)
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	bgzfWriter := bgzf.NewWriter(out.Writer(ctx), parallelism)
	defer func() {
		if e := bgzfWriter.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return WriteResults(bgzfWriter, results, skipFailed)
}
