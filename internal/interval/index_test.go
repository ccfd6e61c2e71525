package interval

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

func TestBuild_RejectsMalformedRegion(t *testing.T) {
	tests := []struct {
		name   string
		region model.Region
	}{
		{"start equals end", model.Region{Contig: "chr1", Start: 10, End: 10}},
		{"start after end", model.Region{Contig: "chr1", Start: 20, End: 10}},
		{"empty contig", model.Region{Contig: "", Start: 0, End: 10}},
		{"negative start", model.Region{Contig: "chr1", Start: -5, End: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]model.Region{{Contig: "chr2", Start: 0, End: 5}, tt.region})
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrMalformedRegion)
			assert.Equal(t, model.KindMalformedRegion, model.KindOf(err))
		})
	}
}

// TestQuery_HalfOpenBoundaries checks that a region includes its start
// and excludes its end.
func TestQuery_HalfOpenBoundaries(t *testing.T) {
	idx, err := Build([]model.Region{{Contig: "chr1", Start: 100, End: 200}})
	require.NoError(t, err)

	assert.False(t, idx.Query("chr1", 99))
	assert.True(t, idx.Query("chr1", 100))
	assert.True(t, idx.Query("chr1", 150))
	assert.True(t, idx.Query("chr1", 199))
	assert.False(t, idx.Query("chr1", 200))
	assert.False(t, idx.Query("chr2", 150), "unknown contig never matches")
}

func TestBuild_MergesOverlappingAndAdjacent(t *testing.T) {
	idx, err := Build([]model.Region{
		{Contig: "chr1", Start: 400, End: 1000},
		{Contig: "chr1", Start: 100, End: 200},
		{Contig: "chr1", Start: 150, End: 250},
		{Contig: "chr1", Start: 250, End: 300}, // adjacent to the merged [100,250)
		{Contig: "chrX", Start: 5, End: 6},
	})
	require.NoError(t, err)

	assert.Equal(t, []model.Region{
		{Contig: "chr1", Start: 100, End: 300},
		{Contig: "chr1", Start: 400, End: 1000},
	}, idx.Regions("chr1"))
	assert.Equal(t, []string{"chr1", "chrX"}, idx.Contigs())
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, int64(800), idx.Covered("chr1"))
}

// TestQuery_SameAsOriginalSweep replays the positions used by the original
// sorted-sweep helper against the binary-search index.
func TestQuery_SameAsOriginalSweep(t *testing.T) {
	idx, err := Build([]model.Region{
		{Contig: "c", Start: 100, End: 200},
		{Contig: "c", Start: 400, End: 1000},
	})
	require.NoError(t, err)

	cases := map[int64]bool{
		10: false, 150: true, 151: true, 220: false,
		450: true, 460: true, 1100: false, 3000: false,
	}
	for pos, want := range cases {
		assert.Equal(t, want, idx.Query("c", pos), "pos %d", pos)
	}
}

// TestQuery_MatchesLinearScan compares the index against a brute-force
// scan over random region sets.
func TestQuery_MatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var regions []model.Region
		for i := 0; i < 1+rng.Intn(20); i++ {
			start := rng.Int63n(1000)
			regions = append(regions, model.Region{Contig: "chr1", Start: start, End: start + 1 + rng.Int63n(50)})
		}
		idx, err := Build(append([]model.Region(nil), regions...))
		require.NoError(t, err)

		for pos := int64(0); pos < 1100; pos++ {
			want := false
			for _, r := range regions {
				if r.Contains(pos) {
					want = true
					break
				}
			}
			require.Equal(t, want, idx.Query("chr1", pos), "round %d pos %d", round, pos)
		}
	}
}

func TestLoadBED(t *testing.T) {
	input := strings.Join([]string{
		"# regions of interest",
		"track name=panel",
		"browser position chr1:1-1000",
		"",
		"chr1\t100\t200\tgeneA",
		"chr2\t5\t10",
		"chr1\t300\t400\r",
	}, "\n")

	regions, err := LoadBED(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.Region{
		{Contig: "chr1", Start: 100, End: 200},
		{Contig: "chr2", Start: 5, End: 10},
		{Contig: "chr1", Start: 300, End: 400},
	}, regions)
}

func TestLoadBED_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"too few columns", "chr1\t100\n", "line 1"},
		{"bad start", "chr1\t1\t2\nchr1\tabc\t200\n", "line 2: invalid start"},
		{"bad end", "chr1\t100\tx\n", "invalid end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBED(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
