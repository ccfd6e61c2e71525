// Package config resolves the options of a fetch run.
//
// Values are layered: built-in defaults, then an optional JSONC file
// (comments and trailing commas allowed), then VRF_* environment
// variables. Command-line flags are applied on top by the cli package,
// after which Validate fails fast on anything inconsistent.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/shinji-kodama/vcf-region-fetch/internal/checksum"
	"github.com/shinji-kodama/vcf-region-fetch/internal/decode"
	"github.com/shinji-kodama/vcf-region-fetch/internal/fetch"
	"github.com/shinji-kodama/vcf-region-fetch/internal/pipeline"
)

// Config holds every tunable of a run. JSON names are used in the config
// file; env tags name the environment overrides.
type Config struct {
	// Parallel is the number of contigs fetched at once (default: 4)
	Parallel int `json:"parallel" env:"VRF_PARALLEL"`

	// OutDir receives the filtered files (default: ".")
	OutDir string `json:"out_dir" env:"VRF_OUT_DIR"`

	// ChecksumAlgo is the digest used for catalog entries that name none (default: md5)
	ChecksumAlgo string `json:"checksum_algo" env:"VRF_CHECKSUM_ALGO"`

	// Codec forces the input decompression (default: auto)
	Codec string `json:"codec"`

	// OutputCompression is bgzf or none (default: bgzf)
	OutputCompression string `json:"output_compression"`

	// PreserveHeaders copies "#" lines into the output (default: true)
	PreserveHeaders bool `json:"preserve_headers"`

	// DiscardUnverified deletes output whose checksum does not match (default: false)
	DiscardUnverified bool `json:"discard_unverified"`

	// MatchContigAliases treats chr1/1 and chrM/MT as equal (default: false)
	MatchContigAliases bool `json:"match_contig_aliases"`

	// MaxRate caps the aggregate download rate per second; 0 is unlimited
	MaxRate ByteSize `json:"max_rate" env:"VRF_MAX_RATE"`

	// BufferSize is the decoder read buffer (default: 1MiB)
	BufferSize ByteSize `json:"buffer_size"`

	// BGZFWorkers is the number of block decoders per stream (default: 1)
	BGZFWorkers int `json:"bgzf_workers"`

	// Timeout bounds connection setup and response headers (default: 10s)
	Timeout Duration `json:"timeout" env:"VRF_TIMEOUT"`

	// UserAgent is sent with every HTTP request
	UserAgent string `json:"user_agent"`

	// LogLevel is debug, info, warn or error (default: info)
	LogLevel string `json:"log_level" env:"VRF_LOG_LEVEL"`

	// LogFormat is text or json (default: text)
	LogFormat string `json:"log_format" env:"VRF_LOG_FORMAT"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Parallel:          pipeline.DefaultParallelism,
		OutDir:            ".",
		ChecksumAlgo:      string(checksum.Default),
		Codec:             string(decode.CodecAuto),
		OutputCompression: string(pipeline.CompressionBGZF),
		PreserveHeaders:   true,
		BufferSize:        ByteSize(decode.DefaultBufferSize),
		BGZFWorkers:       1,
		Timeout:           Duration(fetch.DefaultHeaderTimeout),
		UserAgent:         "vcf-region-fetch",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Validate checks that the configuration is usable.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Parallel <= 0 {
		errs = append(errs, fmt.Sprintf("parallel (%d) must be positive", c.Parallel))
	}
	if c.OutDir == "" {
		errs = append(errs, "out_dir must not be empty")
	}
	if _, err := checksum.Lookup(c.ChecksumAlgo); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := decode.ParseCodec(c.Codec); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := pipeline.ParseCompression(c.OutputCompression); err != nil {
		errs = append(errs, err.Error())
	}
	if c.MaxRate < 0 {
		errs = append(errs, "max_rate must not be negative")
	}
	if c.BufferSize < 4<<10 {
		errs = append(errs, fmt.Sprintf("buffer_size (%s) must be at least 4KiB", c.BufferSize))
	}
	if c.BGZFWorkers <= 0 {
		errs = append(errs, "bgzf_workers must be positive")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log_level (%q) must be one of: debug, info, warn, error", c.LogLevel))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Sprintf("log_format (%q) must be one of: text, json", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Pipeline converts a validated Config into pipeline options. Progress and
// Logger are left for the caller.
func (c *Config) Pipeline() (pipeline.Config, error) {
	alg, err := checksum.Lookup(c.ChecksumAlgo)
	if err != nil {
		return pipeline.Config{}, err
	}
	codec, err := decode.ParseCodec(c.Codec)
	if err != nil {
		return pipeline.Config{}, err
	}
	comp, err := pipeline.ParseCompression(c.OutputCompression)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Parallelism:        c.Parallel,
		OutDir:             c.OutDir,
		DefaultAlgorithm:   alg,
		Codec:              codec,
		OutputCompression:  comp,
		PreserveHeaders:    c.PreserveHeaders,
		DiscardUnverified:  c.DiscardUnverified,
		MatchContigAliases: c.MatchContigAliases,
		Limiter:            fetch.NewLimiter(int64(c.MaxRate)),
		BufferSize:         int(c.BufferSize),
		Workers:            c.BGZFWorkers,
	}, nil
}

// ByteSize is a byte count written in human form ("512KiB", "10MB", "1g").
// Units are binary, as parsed by go-units RAMInBytes.
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler; it serves both the
// JSON file and environment variables.
func (b *ByteSize) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		*b = 0
		return nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	*b = ByteSize(n)
	return nil
}

// UnmarshalJSON accepts a plain number of bytes as well as a human string.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("byte size must be a number or a string: %w", err)
	}
	return b.UnmarshalText([]byte(s))
}

// String renders the size with binary units.
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// Set and Type let a ByteSize back a command-line flag.
func (b *ByteSize) Set(s string) error { return b.UnmarshalText([]byte(s)) }
func (b *ByteSize) Type() string       { return "size" }

// Duration is a time.Duration written as "10s", "1m30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the value in time.Duration notation.
func (d Duration) String() string { return time.Duration(d).String() }

// Set and Type let a Duration back a command-line flag.
func (d *Duration) Set(s string) error { return d.UnmarshalText([]byte(s)) }
func (d *Duration) Type() string       { return "duration" }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
