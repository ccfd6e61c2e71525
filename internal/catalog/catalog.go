// Package catalog maps each contig to exactly one download source.
//
// The URL list published alongside large variant releases often repeats a
// contig (mirrors, re-uploads). The catalog keeps the first entry seen for
// each contig and records every later one as a non-fatal Warning, so the
// choice of source is deterministic and visible to the user.
package catalog

import (
	"fmt"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// Warning describes a duplicate entry that was discarded.
type Warning struct {
	// Contig is the duplicated contig name.
	Contig string

	// Kept is the URL of the first-seen entry, which stays in the catalog.
	Kept string

	// Discarded is the URL of the later entry that was dropped.
	Discarded string

	// Position is the 1-based position of the discarded entry in the input.
	Position int
}

// String renders the warning for logs and summaries.
func (w Warning) String() string {
	return fmt.Sprintf("duplicate source for %s at entry %d ignored (%s); keeping %s",
		w.Contig, w.Position, w.Discarded, w.Kept)
}

// Catalog is an immutable contig → SourceEntry mapping.
type Catalog struct {
	entries  map[string]model.SourceEntry
	warnings []Warning
}

// Build constructs a catalog from entries in input order. It never fails:
// for duplicated contigs the first occurrence wins.
func Build(entries []model.SourceEntry) *Catalog {
	c := &Catalog{entries: make(map[string]model.SourceEntry, len(entries))}
	for i, e := range entries {
		if kept, dup := c.entries[e.Contig]; dup {
			c.warnings = append(c.warnings, Warning{
				Contig:    e.Contig,
				Kept:      kept.URL,
				Discarded: e.URL,
				Position:  i + 1,
			})
			continue
		}
		c.entries[e.Contig] = e
	}
	return c
}

// Lookup returns the source for contig, or an error wrapping
// model.ErrMissingSource when the catalog has none.
func (c *Catalog) Lookup(contig string) (model.SourceEntry, error) {
	e, ok := c.entries[contig]
	if !ok {
		return model.SourceEntry{}, fmt.Errorf("%w: no URL listed for contig %q", model.ErrMissingSource, contig)
	}
	return e, nil
}

// Warnings returns the duplicates discarded during Build, in input order.
func (c *Catalog) Warnings() []Warning {
	return append([]Warning(nil), c.warnings...)
}

// Len returns the number of distinct contigs in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}
