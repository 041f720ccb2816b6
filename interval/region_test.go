package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		refName string
		start0  PosType
		end     PosType
	}{
		{"chr1:1-1000", "chr1", 0, 1000},
		{"chr1:1000", "chr1", 999, 1000},
		{"chr1:1,000-2,000", "chr1", 999, 2000},
		{"chr1:5-5", "chr1", 4, 5},
		{"chr1", "chr1", 0, PosTypeMax - 1},
	}
	for _, tt := range tests {
		result, err := ParseRegionString(tt.region)
		expect.NoError(t, err)
		expect.EQ(t, result.RefName, tt.refName)
		expect.EQ(t, result.Start0, tt.start0)
		expect.EQ(t, result.End, tt.end)
	}
}

func TestParseRegionStringErrors(t *testing.T) {
	for _, region := range []string{"", ":1-2", "chr1:0", "chr1:x", "chr1:10-5", "chr1:0-5"} {
		_, err := ParseRegionString(region)
		expect.NotNil(t, err, "region %q", region)
	}
}

func TestEntryContains(t *testing.T) {
	e, err := ParseRegionString("chr2:100-200")
	expect.NoError(t, err)
	expect.False(t, e.Contains("chr2", 98))
	expect.True(t, e.Contains("chr2", 99))
	expect.True(t, e.Contains("chr2", 199))
	expect.False(t, e.Contains("chr2", 200))
	expect.False(t, e.Contains("chr1", 150))
}
