// Package interval builds a per-contig index of regions of interest and
// answers point-overlap queries against it.
//
// Regions are stored per contig as sorted, non-overlapping half-open ranges.
// Overlapping and adjacent input regions are coalesced at build time, which
// lets Query use a single binary search over range starts. The index is
// immutable once built and is shared read-only by all contig workers.
package interval

import (
	"fmt"
	"sort"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// Index maps contig names to their merged, sorted regions.
type Index struct {
	byContig map[string][]span
}

// span is a merged [start, end) range. The contig name lives in the map key.
type span struct {
	start, end int64
}

// Build validates every region and constructs the index.
//
// Any region with start >= end (or an empty contig) fails the whole build
// with an error wrapping model.ErrMalformedRegion; the region list is shared
// by every worker, so a bad entry is fatal to the run.
func Build(regions []model.Region) (*Index, error) {
	grouped := make(map[string][]span)
	for i, r := range regions {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("region #%d: %w", i+1, err)
		}
		grouped[r.Contig] = append(grouped[r.Contig], span{start: r.Start, end: r.End})
	}

	for contig, spans := range grouped {
		grouped[contig] = merge(spans)
	}
	return &Index{byContig: grouped}, nil
}

// merge sorts spans by start and coalesces overlapping or adjacent ones.
// The input slice is reordered in place.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	out := spans[:0]
	for _, s := range spans {
		if n := len(out); n > 0 && s.start <= out[n-1].end {
			if s.end > out[n-1].end {
				out[n-1].end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Query reports whether pos (0-based) lies in some region of contig,
// using half-open semantics: start <= pos < end.
func (idx *Index) Query(contig string, pos int64) bool {
	spans := idx.byContig[contig]
	if len(spans) == 0 {
		return false
	}
	// First span whose start is beyond pos; the candidate is the one before.
	i := sort.Search(len(spans), func(i int) bool { return spans[i].start > pos })
	if i == 0 {
		return false
	}
	return pos < spans[i-1].end
}

// Contigs returns every contig with at least one region, sorted by name.
func (idx *Index) Contigs() []string {
	names := make([]string, 0, len(idx.byContig))
	for name := range idx.byContig {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Regions returns a copy of the merged regions for contig.
func (idx *Index) Regions(contig string) []model.Region {
	spans := idx.byContig[contig]
	out := make([]model.Region, len(spans))
	for i, s := range spans {
		out[i] = model.Region{Contig: contig, Start: s.start, End: s.end}
	}
	return out
}

// Len returns the number of merged regions across all contigs.
func (idx *Index) Len() int {
	n := 0
	for _, spans := range idx.byContig {
		n += len(spans)
	}
	return n
}

// Covered returns the number of bases covered by the regions of contig.
func (idx *Index) Covered(contig string) int64 {
	var total int64
	for _, s := range idx.byContig[contig] {
		total += s.end - s.start
	}
	return total
}
