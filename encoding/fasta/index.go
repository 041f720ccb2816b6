package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// GenerateIndex writes a samtools-compatible .fai index of the FASTA data in
// in.  Every line of a sequence except the last must have the same length.
func GenerateIndex(out io.Writer, in io.Reader) error {
	var (
		w       = tsv.NewWriter(out)
		r       = bufio.NewReader(in)
		cur     faiRow
		inSeq   bool
		lastLen int64 // bases on the previous line of cur; -1 after a short line
		nBytes  int64
	)
	flush := func() error {
		if !inSeq {
			return nil
		}
		w.WriteString(cur.Name)
		w.WriteInt64(cur.Length)
		w.WriteInt64(cur.Offset)
		w.WriteInt64(cur.LineBases)
		w.WriteInt64(cur.LineWidth)
		return w.EndLine()
	}
	for {
		fullLine, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		nBytes += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) > 0 {
			if line[0] == '>' {
				if e := flush(); e != nil {
					return e
				}
				cur = faiRow{
					Name:   string(bytes.SplitN(line[1:], []byte{' '}, 2)[0]),
					Offset: nBytes,
				}
				inSeq = true
				lastLen = 0
			} else {
				if !inSeq {
					return errors.E(errors.Invalid, "fasta.GenerateIndex: sequence data before the first '>' line")
				}
				if lastLen < 0 || (cur.LineBases > 0 && int64(len(line)) > cur.LineBases) {
					return errors.E(errors.Invalid, fmt.Sprintf("fasta.GenerateIndex: sequence %s has uneven line lengths", cur.Name))
				}
				if cur.LineBases == 0 {
					cur.LineBases = int64(len(line))
					cur.LineWidth = int64(len(fullLine))
				} else if int64(len(line)) < cur.LineBases {
					lastLen = -1
				}
				cur.Length += int64(len(line))
			}
		}
		if err == io.EOF {
			break
		}
	}
	if nBytes == 0 {
		return errors.E(errors.Invalid, "fasta.GenerateIndex: empty FASTA file")
	}
	if err := flush(); err != nil {
		return err
	}
	return w.Flush()
}
