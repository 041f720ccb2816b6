package fasta

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// File is a Fasta backed by an open file.
type File struct {
	Fasta
	in file.File
}

// Open opens the FASTA file at path, which may be any path understood by
// github.com/grailbio/base/file.  If path+".fai" can be opened the file is
// accessed through the index; otherwise it is read into memory, gunzipping it
// first if path ends in ".gz".
func Open(ctx context.Context, path string) (*File, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	f := &File{in: in}
	if fai, err := file.Open(ctx, path+".fai"); err == nil {
		f.Fasta, err = NewIndexed(in.Reader(ctx), fai.Reader(ctx))
		if e := fai.Close(ctx); e != nil && err == nil {
			err = e
		}
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, errors.E(err, "reading", path+".fai")
		}
		return f, nil
	}

	r := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(r)
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, errors.E(err, "reading", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	if f.Fasta, err = New(r); err != nil {
		in.Close(ctx) // nolint: errcheck
		return nil, errors.E(err, "reading", path)
	}
	return f, nil
}

// Close releases the underlying file.
func (f *File) Close(ctx context.Context) error {
	return f.in.Close(ctx)
}
