package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/hts/bgzf"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// Compression selects the container of the filtered output files.
type Compression string

const (
	// CompressionBGZF writes <contig>.vcf.gz, indexable by tabix.
	CompressionBGZF Compression = "bgzf"

	// CompressionNone writes plain <contig>.vcf.
	CompressionNone Compression = "none"
)

// ParseCompression converts a flag value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case CompressionBGZF, CompressionNone:
		return c, nil
	case "":
		return CompressionBGZF, nil
	default:
		return "", fmt.Errorf("invalid output compression %q (valid: bgzf, none)", s)
	}
}

const (
	partialSuffix    = ".partial"
	unverifiedSuffix = ".unverified"
)

var pathSeparators = strings.NewReplacer("/", "_", `\`, "_")

// OutputName returns the final file name for contig.
func OutputName(contig string, c Compression) string {
	name := pathSeparators.Replace(contig) + ".vcf"
	if c == CompressionBGZF {
		name += ".gz"
	}
	return name
}

// output is one contig's filtered file. Lines go to <final>.partial until
// the worker decides the file's fate with commit, quarantine or discard.
type output struct {
	f       *os.File
	w       io.Writer
	flush   func() error
	partial string
	final   string
	closed  bool
}

func createOutput(dir, contig string, c Compression, workers int) (*output, error) {
	final := filepath.Join(dir, OutputName(contig, c))
	partial := final + partialSuffix

	f, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", model.ErrOutput, partial, err)
	}

	o := &output{f: f, partial: partial, final: final}
	switch c {
	case CompressionNone:
		bw := bufio.NewWriterSize(f, 1<<16)
		o.w, o.flush = bw, bw.Flush
	default:
		bg := bgzf.NewWriter(f, workers)
		o.w, o.flush = bg, bg.Close
	}
	return o, nil
}

// writeLine appends line and a newline terminator.
func (o *output) writeLine(line []byte) error {
	if _, err := o.w.Write(line); err != nil {
		return fmt.Errorf("%w: write %s: %w", model.ErrOutput, o.partial, err)
	}
	if _, err := o.w.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("%w: write %s: %w", model.ErrOutput, o.partial, err)
	}
	return nil
}

// close flushes the encoder (writing the BGZF EOF marker) and closes the file.
func (o *output) close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	ferr := o.flush()
	cerr := o.f.Close()
	if ferr != nil {
		return fmt.Errorf("%w: flush %s: %w", model.ErrOutput, o.partial, ferr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: close %s: %w", model.ErrOutput, o.partial, cerr)
	}
	return nil
}

// commit publishes the file under its final name.
func (o *output) commit() (string, error) {
	return o.rename(o.final)
}

// quarantine keeps a complete but unverified file next to where the final
// one would have gone.
func (o *output) quarantine() (string, error) {
	return o.rename(o.final + unverifiedSuffix)
}

func (o *output) rename(to string) (string, error) {
	if err := o.close(); err != nil {
		return "", err
	}
	if err := os.Rename(o.partial, to); err != nil {
		return "", fmt.Errorf("%w: rename %s: %w", model.ErrOutput, o.partial, err)
	}
	return to, nil
}

// discard removes the partial file.
func (o *output) discard() {
	_ = o.close()
	_ = os.Remove(o.partial)
}
