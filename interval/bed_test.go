package interval

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const testBED = `track name=test
chr1	10	20
chr1	15	30
chr1	40	41
chr2	0	5
`

func TestSetContainsByName(t *testing.T) {
	entries, err := ParseBED(strings.NewReader(testBED))
	assert.NoError(t, err)
	assert.EQ(t, len(entries), 4)
	s := NewSet(entries)
	tests := []struct {
		refName string
		pos0    PosType
		want    bool
	}{
		{"chr1", 9, false},
		{"chr1", 10, true},
		{"chr1", 20, true}, // merged with [15, 30)
		{"chr1", 29, true},
		{"chr1", 30, false},
		{"chr1", 40, true},
		{"chr1", 41, false},
		{"chr2", 0, true},
		{"chr2", 5, false},
		{"chr3", 0, false},
	}
	for _, tt := range tests {
		expect.EQ(t, s.ContainsByName(tt.refName, tt.pos0), tt.want, "%s:%d", tt.refName, tt.pos0)
	}
}

func TestParseBEDErrors(t *testing.T) {
	for _, in := range []string{"chr1\t10\n", "chr1\tx\t20\n", "chr1\t20\t10\n"} {
		_, err := ParseBED(strings.NewReader(in))
		expect.NotNil(t, err, "input %q", in)
	}
}

func TestLoadBEDGzip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(testBED))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())

	for _, tt := range []struct {
		name string
		data []byte
	}{
		{"plain.bed", []byte(testBED)},
		{"zipped.bed.gz", buf.Bytes()},
	} {
		path := filepath.Join(tmpdir, tt.name)
		out, err := file.Create(ctx, path)
		assert.NoError(t, err)
		_, err = out.Writer(ctx).Write(tt.data)
		assert.NoError(t, err)
		assert.NoError(t, out.Close(ctx))

		s, err := LoadBED(ctx, path)
		assert.NoError(t, err)
		expect.True(t, s.ContainsByName("chr1", 25))
		expect.False(t, s.ContainsByName("chr1", 35))
	}
}
