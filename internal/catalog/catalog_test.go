package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// TestBuild_FirstOccurrenceWins verifies duplicate contigs keep the first
// entry and record the later one as a warning.
func TestBuild_FirstOccurrenceWins(t *testing.T) {
	c := Build([]model.SourceEntry{
		{Contig: "c", URL: "url1", ExpectedChecksum: "h1"},
		{Contig: "d", URL: "url3", ExpectedChecksum: "h3"},
		{Contig: "c", URL: "url2", ExpectedChecksum: "h2"},
	})

	got, err := c.Lookup("c")
	require.NoError(t, err)
	assert.Equal(t, "url1", got.URL)
	assert.Equal(t, "h1", got.ExpectedChecksum)
	assert.Equal(t, 2, c.Len())

	warns := c.Warnings()
	require.Len(t, warns, 1)
	assert.Equal(t, Warning{Contig: "c", Kept: "url1", Discarded: "url2", Position: 3}, warns[0])
	assert.Contains(t, warns[0].String(), "duplicate source for c")
}

func TestLookup_Missing(t *testing.T) {
	c := Build(nil)
	_, err := c.Lookup("chrY")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingSource)
	assert.Equal(t, model.KindMissingSource, model.KindOf(err))
}

func TestLoadCSV(t *testing.T) {
	input := strings.Join([]string{
		"chromosome,md5sum,url",
		"chr1,abc123,https://example.org/chr1.vcf.bgz",
		"# mirror",
		"chr2, def456 ,https://example.org/chr2.vcf.bgz,SHA256",
	}, "\n")

	entries, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.SourceEntry{
		{Contig: "chr1", ExpectedChecksum: "abc123", URL: "https://example.org/chr1.vcf.bgz"},
		{Contig: "chr2", ExpectedChecksum: "def456", URL: "https://example.org/chr2.vcf.bgz", Algorithm: "sha256"},
	}, entries)
}

func TestLoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few columns", "chr1,abc\n"},
		{"empty url", "chr1,abc,\n"},
		{"empty checksum", "chr1,,https://x/y\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	doc := `sources:
  - contig: chr1
    url: file:///data/chr1.vcf.gz
    checksum: sha256:0000000000000000000000000000000000000000000000000000000000000000
  - contig: chr2
    url: https://example.org/chr2.vcf.gz
    checksum: ffff
    algorithm: XXH64
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "chr1", entries[0].Contig)
	assert.Equal(t, "xxh64", entries[1].Algorithm)
}

func TestLoadFile_YAMLUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - contig: c\n    link: x\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
