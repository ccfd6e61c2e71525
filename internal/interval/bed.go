package interval

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// LoadBEDFile opens path and parses it with LoadBED.
func LoadBEDFile(path string) ([]model.Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open region list: %w", err)
	}
	defer func() { _ = f.Close() }()

	regions, err := LoadBED(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return regions, nil
}

// LoadBED parses a tab-delimited BED stream: contig, start, end and any
// number of ignored trailing columns. Coordinates are already 0-based
// half-open, so they are used as-is.
//
// Blank lines, "#" comments and UCSC "track"/"browser" lines are skipped.
// Every other line must have at least three columns with integer
// coordinates; the 1-based line number is reported on failure. Whether
// start < end holds is left to Build.
func LoadBED(r io.Reader) ([]model.Region, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var regions []model.Region
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimRight(sc.Bytes(), "\r")
		if skipBEDLine(line) {
			continue
		}

		fields := bytes.Split(line, []byte{'\t'})
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 tab-separated columns, got %d", lineNo, len(fields))
		}
		start, err := strconv.ParseInt(string(bytes.TrimSpace(fields[1])), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid start %q", lineNo, fields[1])
		}
		end, err := strconv.ParseInt(string(bytes.TrimSpace(fields[2])), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid end %q", lineNo, fields[2])
		}
		regions = append(regions, model.Region{
			Contig: string(bytes.TrimSpace(fields[0])),
			Start:  start,
			End:    end,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read region list: %w", err)
	}
	return regions, nil
}

func skipBEDLine(line []byte) bool {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] == '#' {
		return true
	}
	first := trimmed
	if i := bytes.IndexAny(trimmed, " \t"); i >= 0 {
		first = trimmed[:i]
	}
	return string(first) == "track" || string(first) == "browser"
}
