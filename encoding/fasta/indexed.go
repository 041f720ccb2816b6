package fasta

import (
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// faiRow is one line of a samtools .fai index.
type faiRow struct {
	Name      string
	Length    int64
	Offset    int64 // byte offset of the first base
	LineBases int64
	LineWidth int64 // LineBases plus the newline
}

// readFai parses a .fai index.  Rows are returned in file order.
func readFai(index io.Reader) ([]faiRow, error) {
	r := tsv.NewReader(index)
	var rows []faiRow
	for {
		var row faiRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, "reading FASTA index")
		}
		if row.Length > 0 && (row.LineBases <= 0 || row.LineWidth < row.LineBases) {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("bad FASTA index line for %s", row.Name))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Bytes of the file kept around after each read.
const windowSize = 8192

type indexed struct {
	seqs     map[string]faiRow
	seqNames []string

	mu     sync.Mutex
	in     io.ReadSeeker
	bufOff int64
	buf    []byte // file contents starting at bufOff.
}

// NewIndexed creates a Fasta that looks bases up in in through the given .fai
// index, without reading the whole file into memory.
func NewIndexed(in io.ReadSeeker, index io.Reader) (Fasta, error) {
	rows, err := readFai(index)
	if err != nil {
		return nil, err
	}
	f := &indexed{seqs: make(map[string]faiRow, len(rows)), in: in}
	for _, row := range rows {
		f.seqs[row.Name] = row
		f.seqNames = append(f.seqNames, row.Name)
	}
	return f, nil
}

func (f *indexed) Base(seqName string, pos0 int) (byte, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.E(errors.NotExist, fmt.Sprintf("sequence not found in index: %s", seqName))
	}
	if pos0 < 0 || int64(pos0) >= ent.Length {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("position %d outside sequence %s of length %d", pos0, seqName, ent.Length))
	}
	p := int64(pos0)
	off := ent.Offset + (p/ent.LineBases)*ent.LineWidth + p%ent.LineBases

	f.mu.Lock()
	defer f.mu.Unlock()
	if off < f.bufOff || off >= f.bufOff+int64(len(f.buf)) {
		if err := f.fill(off); err != nil {
			return 0, err
		}
	}
	return toUpper(f.buf[off-f.bufOff]), nil
}

// fill reads the window starting at off.
//
// REQUIRES: f.mu is held.
func (f *indexed) fill(off int64) error {
	if _, err := f.in.Seek(off, io.SeekStart); err != nil {
		return errors.E(err, fmt.Sprintf("seeking to FASTA offset %d", off))
	}
	if cap(f.buf) < windowSize {
		f.buf = make([]byte, windowSize)
	}
	n, err := io.ReadFull(f.in, f.buf[:windowSize])
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if n == 0 {
		f.buf = f.buf[:0]
		return errors.E(errors.Invalid, fmt.Sprintf("FASTA offset %d past end of file (bad index?)", off))
	}
	if err != nil {
		return err
	}
	f.bufOff = off
	f.buf = f.buf[:n]
	return nil
}

func (f *indexed) Len(seqName string) (int, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.E(errors.NotExist, fmt.Sprintf("sequence not found in index: %s", seqName))
	}
	return int(ent.Length), nil
}

func (f *indexed) SeqNames() []string {
	return f.seqNames
}
