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
package main

/*
bio-genotype calls diploid genotypes at known biallelic SNP sites from the
reads in a BAM.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/snpcall/pileup/genotype"
)

var (
	configPath        = flag.String("config", "", "Optional YAML file of option values, keyed by flag name. Flags given on the command line take precedence")
	bamIndexPath      = flag.String("index", genotype.DefaultOpts.BamIndexPath, "Input BAM index path. Defaults to bampath + .bai")
	fastaPath         = flag.String("fasta", genotype.DefaultOpts.FastaPath, "Optional reference FASTA; sites whose ref allele disagrees with it are reported as invalid. Uses path + .fai when present")
	bedPath           = flag.String("bed", genotype.DefaultOpts.BedPath, "Only call sites inside the intervals of this BED file; cannot be combined with -region")
	region            = flag.String("region", genotype.DefaultOpts.Region, "Only call sites inside the specified region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>; cannot be combined with -bed")
	flagExclude       = flag.Int("flag-exclude", genotype.DefaultOpts.FlagExclude, "Reads with a FLAG bit intersecting this value are left out of pileup columns")
	minBaseQual       = flag.Int("min-base-qual", genotype.DefaultOpts.MinBaseQual, "Lower bound on base quality in a single read")
	ignoreOrphans     = flag.Bool("ignore-orphans", genotype.DefaultOpts.IgnoreOrphans, "Leave paired reads that are not in a proper pair out of pileup columns")
	maxReadSpan       = flag.Int("max-read-span", genotype.DefaultOpts.MaxReadSpan, "If positive, upper bound on size of reference-genome region a read maps to; 0 = find every overlapping read through the BAM index")
	model             = flag.String("model", genotype.DefaultOpts.Model, "Likelihood model; 'legacy' (one error probability per site) or 'per-read'")
	refEvidence       = flag.String("ref-evidence", genotype.DefaultOpts.RefEvidence, "When ref-supporting reads enter the likelihoods; 'gated' (only when they outnumber alt-supporting reads) or 'always'")
	fallbackErrorProb = flag.Float64("fallback-error-prob", genotype.DefaultOpts.FallbackErrorProb, "Error probability used by the legacy model at sites without a ref-supporting read; 0 = fail those sites")
	rescale           = flag.Bool("rescale", genotype.DefaultOpts.Rescale, "Rescale scores before exponentiation so that deep sites cannot underflow")
	skipFailed        = flag.Bool("skip-failed", genotype.DefaultOpts.SkipFailed, "Leave sites that could not be called out of the output")
	failFast          = flag.Bool("fail-fast", genotype.DefaultOpts.FailFast, "Abort on the first site that could not be called")
	outPath           = flag.String("out", "bio-genotype.tsv", "Output path; a .gz suffix selects bgzf compression")
	parallelism       = flag.Int("parallelism", genotype.DefaultOpts.Parallelism, "Maximum number of simultaneous (local) jobs to launch; 0 = runtime.NumCPU()")
)

func bioGenotypeUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath sitespath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioGenotypeUsage
	shutdown := grail.Init()
	defer shutdown()

	allArgs := flag.Args()
	nPositionalArgs := flag.NArg()
	positionalArgs := allArgs[len(allArgs)-nPositionalArgs:]
	if nPositionalArgs != 2 {
		if nPositionalArgs < 2 {
			log.Fatalf("Missing positional arguments (bampath and sitespath required); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		} else {
			log.Fatalf("Too many positional arguments (only bampath and sitespath expected); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		}
	}
	ctx := vcontext.Background()
	opts := genotype.DefaultOpts
	if *configPath != "" {
		if err := genotype.LoadOpts(ctx, *configPath, &opts); err != nil {
			log.Fatalf("%v", err)
		}
	}
	setters := map[string]func(){
		"index":               func() { opts.BamIndexPath = *bamIndexPath },
		"fasta":               func() { opts.FastaPath = *fastaPath },
		"bed":                 func() { opts.BedPath = *bedPath },
		"region":              func() { opts.Region = *region },
		"flag-exclude":        func() { opts.FlagExclude = *flagExclude },
		"min-base-qual":       func() { opts.MinBaseQual = *minBaseQual },
		"ignore-orphans":      func() { opts.IgnoreOrphans = *ignoreOrphans },
		"max-read-span":       func() { opts.MaxReadSpan = *maxReadSpan },
		"model":               func() { opts.Model = *model },
		"ref-evidence":        func() { opts.RefEvidence = *refEvidence },
		"fallback-error-prob": func() { opts.FallbackErrorProb = *fallbackErrorProb },
		"rescale":             func() { opts.Rescale = *rescale },
		"skip-failed":         func() { opts.SkipFailed = *skipFailed },
		"fail-fast":           func() { opts.FailFast = *failFast },
		"parallelism":         func() { opts.Parallelism = *parallelism },
	}
	// Only explicitly set flags override the config file.
	flag.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set()
		}
	})
	if err := genotype.Run(ctx, positionalArgs[0], positionalArgs[1], *outPath, &opts); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
