package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// Set is a union of intervals, indexed by contig name.  Within each contig,
// intervals are kept as a sorted, merged, flat list of endpoints
// [start0, end, start0, end, ...].
type Set struct {
	endpoints map[string][]PosType
}

// NewSet builds a Set from an arbitrary list of entries; overlapping and
// adjacent entries are merged.
func NewSet(entries []Entry) Set {
	byRef := make(map[string][]Entry)
	for _, e := range entries {
		if e.End <= e.Start0 {
			continue
		}
		byRef[e.RefName] = append(byRef[e.RefName], e)
	}
	s := Set{endpoints: make(map[string][]PosType, len(byRef))}
	for refName, refEntries := range byRef {
		sort.Slice(refEntries, func(i, j int) bool { return refEntries[i].Start0 < refEntries[j].Start0 })
		var endpoints []PosType
		for _, e := range refEntries {
			n := len(endpoints)
			if n != 0 && e.Start0 <= endpoints[n-1] {
				if e.End > endpoints[n-1] {
					endpoints[n-1] = e.End
				}
				continue
			}
			endpoints = append(endpoints, e.Start0, e.End)
		}
		s.endpoints[refName] = endpoints
	}
	return s
}

// ContainsByName returns true iff pos0 (0-based) on contig refName is covered
// by some interval in the set.
func (s Set) ContainsByName(refName string, pos0 PosType) bool {
	endpoints := s.endpoints[refName]
	// Index of the first endpoint > pos0; pos0 is covered iff that index is odd.
	idx := sort.Search(len(endpoints), func(i int) bool { return endpoints[i] > pos0 })
	return idx&1 == 1
}

// ParseBED reads the first three columns of each line of a BED file.  Blank
// lines and "#", "track" or "browser" header lines are skipped.
func ParseBED(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		line := scanner.Text()
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("interval.ParseBED: line %d has fewer tokens than expected", lineIdx)
		}
		start, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("interval.ParseBED: line %d: %v", lineIdx, err)
		}
		end, err := strconv.ParseInt(fields[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("interval.ParseBED: line %d: %v", lineIdx, err)
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("interval.ParseBED: line %d: invalid interval [%d, %d)", lineIdx, start, end)
		}
		entries = append(entries, Entry{
			RefName: fields[0],
			Start0:  PosType(start),
			End:     PosType(end),
		})
	}
	return entries, scanner.Err()
}

// LoadBED is a wrapper for ParseBED that takes a path instead of an
// io.Reader.  Gzipped files are detected by extension.
func LoadBED(ctx context.Context, path string) (s Set, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader := io.Reader(infile.Reader(ctx))
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
	var entries []Entry
	if entries, err = ParseBED(reader); err != nil {
		return
	}
	return NewSet(entries), nil
}
