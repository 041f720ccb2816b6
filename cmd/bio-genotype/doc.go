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
Given an indexed BAM and a table of candidate biallelic SNP sites, bio-genotype
reports the most probable diploid genotype at each site, along with the
posterior probability of each genotype.

The sites table is tab-separated with a "chr pos ref alt maf" header row;
positions are 1-based, and maf is the population minor-allele frequency used
to derive Hardy-Weinberg genotype priors.  The output has one row per input
site, in input order.  Sites that cannot be called get "." in place of the
genotype and posteriors, unless -skip-failed is set.

Options may also be read from a YAML file passed with -config; keys are flag
names, and flags given on the command line override the file.  With -fasta,
each site's ref allele is checked against the reference before calling.

Sample usage:
bio-genotype \
    --region chr2 \
    --fasta hg19.fa \
    --out calls.tsv \
    my.bam \
    sites.tsv
*/
package main
