package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// yamlCatalog is the on-disk YAML layout:
//
//	sources:
//	  - contig: chr1
//	    url: https://.../chr1.vcf.bgz
//	    checksum: 0f3c...
//	    algorithm: md5
type yamlCatalog struct {
	Sources []model.SourceEntry `yaml:"sources"`
}

// LoadFile reads a URL catalog, choosing the format by extension:
// .yaml/.yml is parsed as YAML, anything else as CSV.
func LoadFile(path string) ([]model.SourceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []model.SourceEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = LoadYAML(f)
	default:
		entries, err = LoadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// LoadCSV parses comma-separated rows of "contig,checksum,url[,algorithm]",
// the column order of the published gnomAD URL lists. A first row whose
// URL column does not look like a location is treated as a header.
func LoadCSV(r io.Reader) ([]model.SourceEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var entries []model.SourceEntry
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("row %d: expected contig,checksum,url columns, got %d", row, len(rec))
		}
		if row == 1 && isHeaderRow(rec) {
			continue
		}
		e := model.SourceEntry{
			Contig:           strings.TrimSpace(rec[0]),
			ExpectedChecksum: strings.TrimSpace(rec[1]),
			URL:              strings.TrimSpace(rec[2]),
		}
		if len(rec) > 3 {
			e.Algorithm = strings.ToLower(strings.TrimSpace(rec[3]))
		}
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadYAML parses the YAML catalog layout.
func LoadYAML(r io.Reader) ([]model.SourceEntry, error) {
	var doc yamlCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse YAML catalog: %w", err)
	}
	for i := range doc.Sources {
		doc.Sources[i].Algorithm = strings.ToLower(doc.Sources[i].Algorithm)
		if err := validateEntry(doc.Sources[i]); err != nil {
			return nil, fmt.Errorf("source #%d: %w", i+1, err)
		}
	}
	return doc.Sources, nil
}

func isHeaderRow(rec []string) bool {
	url := strings.ToLower(strings.TrimSpace(rec[2]))
	return url == "url" || (!strings.Contains(url, "/") && !strings.Contains(url, "."))
}

func validateEntry(e model.SourceEntry) error {
	if e.Contig == "" {
		return errors.New("empty contig")
	}
	if e.URL == "" {
		return fmt.Errorf("empty URL for contig %s", e.Contig)
	}
	if e.ExpectedChecksum == "" {
		return fmt.Errorf("empty checksum for contig %s", e.Contig)
	}
	return nil
}
