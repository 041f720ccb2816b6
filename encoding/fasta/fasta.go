// Package fasta reads reference genomes in FASTA format.  See
// http://www.htslib.org/doc/faidx.html.  Briefly, FASTA files consist of a
// number of named sequences that may be interrupted by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Sequence names are the characters after '>' up to the first space; the rest
// of the line is ignored, so '>chr1 A viral sequence' names 'chr1'.
package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
)

const maxLineLen = 1 << 28

// Fasta is a set of named reference sequences.  Implementations are safe for
// concurrent use.
type Fasta interface {
	// Base returns the base at 0-based position pos0 of seqName, upper-cased.
	Base(seqName string, pos0 int) (byte, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (int, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

type inMemory struct {
	seqs     map[string][]byte
	seqNames []string
}

// New reads all the FASTA data from r into memory.
func New(r io.Reader) (Fasta, error) {
	f := &inMemory{seqs: make(map[string][]byte)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineLen)
	var (
		seqName string
		seq     []byte
		inSeq   bool
	)
	flush := func() {
		if inSeq {
			f.seqs[seqName] = seq
			f.seqNames = append(f.seqNames, seqName)
		}
	}
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			seqName = string(bytes.SplitN(line[1:], []byte{' '}, 2)[0])
			if seqName == "" {
				return nil, errors.E(errors.Invalid, "fasta.New: empty sequence name")
			}
			if _, ok := f.seqs[seqName]; ok {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("fasta.New: duplicate sequence %s", seqName))
			}
			seq = nil
			inSeq = true
			continue
		}
		if !inSeq {
			return nil, errors.E(errors.Invalid, "fasta.New: sequence data before the first '>' line")
		}
		seq = append(seq, bytes.ToUpper(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "fasta.New: couldn't read FASTA data")
	}
	flush()
	return f, nil
}

func (f *inMemory) Base(seqName string, pos0 int) (byte, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.E(errors.NotExist, fmt.Sprintf("sequence not found: %s", seqName))
	}
	if pos0 < 0 || pos0 >= len(s) {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("position %d outside sequence %s of length %d", pos0, seqName, len(s)))
	}
	return s[pos0], nil
}

func (f *inMemory) Len(seqName string) (int, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.E(errors.NotExist, fmt.Sprintf("sequence not found: %s", seqName))
	}
	return len(s), nil
}

func (f *inMemory) SeqNames() []string {
	return f.seqNames
}

func toUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
