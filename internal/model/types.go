package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Region is a half-open, 0-based interval [Start, End) on a contig.
// Regions always use this convention internally, regardless of how the
// input file expressed them.
type Region struct {
	// Contig is the sequence name (e.g., "chr1").
	Contig string `json:"contig" yaml:"contig"`

	// Start is the first covered position (inclusive, 0-based).
	Start int64 `json:"start" yaml:"start"`

	// End is one past the last covered position (exclusive).
	End int64 `json:"end" yaml:"end"`
}

// Validate checks the region invariants: a non-empty contig and Start < End.
func (r Region) Validate() error {
	if r.Contig == "" {
		return fmt.Errorf("%w: empty contig name", ErrMalformedRegion)
	}
	if r.Start < 0 {
		return fmt.Errorf("%w: %s has negative start %d", ErrMalformedRegion, r.Contig, r.Start)
	}
	if r.Start >= r.End {
		return fmt.Errorf("%w: %s start %d is not before end %d", ErrMalformedRegion, r.Contig, r.Start, r.End)
	}
	return nil
}

// Contains reports whether pos falls inside the half-open interval.
func (r Region) Contains(pos int64) bool {
	return r.Start <= pos && pos < r.End
}

// String returns "contig:start-end" using the internal 0-based coordinates.
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Start, r.End)
}

// SourceEntry describes where a contig's variant file can be downloaded
// and the checksum its raw bytes must match.
type SourceEntry struct {
	// Contig is the sequence name this file covers.
	Contig string `json:"contig" yaml:"contig"`

	// URL is the download location. http(s)://, file:// and bare local
	// paths are accepted.
	URL string `json:"url" yaml:"url"`

	// ExpectedChecksum is the published digest of the raw (compressed) file.
	// It may carry an algorithm prefix such as "sha256:".
	ExpectedChecksum string `json:"checksum" yaml:"checksum"`

	// Algorithm optionally names the digest algorithm for this entry.
	// Empty means the run default is used.
	Algorithm string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
}

// ErrorKind classifies why a contig failed. The string values appear in
// JSON/YAML summaries and are part of the CLI output contract.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindMalformedRegion  ErrorKind = "malformed_region"
	KindMissingSource    ErrorKind = "missing_source"
	KindNetworkError     ErrorKind = "network_error"
	KindDecodeError      ErrorKind = "decode_error"
	KindChecksumMismatch ErrorKind = "checksum_mismatch"
	KindUnparseable      ErrorKind = "unparseable"
	KindCancelled        ErrorKind = "cancelled"
	KindOutputError      ErrorKind = "output_error"
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	return string(k)
}

// State is a stage of the per-contig retrieval state machine:
//
//	pending → resolving → fetching → streaming → finalizing → done
//	any stage → failed
type State string

const (
	StatePending    State = "pending"
	StateResolving  State = "resolving"
	StateFetching   State = "fetching"
	StateStreaming  State = "streaming"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// String returns the string representation of State.
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// IsValid checks whether the State value is one of the predefined states.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateResolving, StateFetching, StateStreaming,
		StateFinalizing, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// ParseState converts a string to a State.
// Returns an error if the string does not match any valid state.
func ParseState(s string) (State, error) {
	state := State(strings.ToLower(s))
	if !state.IsValid() {
		return "", fmt.Errorf("invalid state: %q", s)
	}
	return state, nil
}

// ChecksumStatus records the outcome of comparing the raw download digest
// with the expected checksum.
type ChecksumStatus string

const (
	// ChecksumUnchecked means the download never started.
	ChecksumUnchecked ChecksumStatus = "unchecked"

	// ChecksumOK means the full raw stream matched the expected digest.
	ChecksumOK ChecksumStatus = "ok"

	// ChecksumMismatch means the full raw stream was read but its digest differs.
	ChecksumMismatch ChecksumStatus = "mismatch"

	// ChecksumIndeterminate means the raw stream could not be read to the end,
	// so no verdict is possible.
	ChecksumIndeterminate ChecksumStatus = "indeterminate"
)

// RetrievalResult is the outcome of processing one contig. Exactly one is
// produced per contig in the interval index.
type RetrievalResult struct {
	Contig          string         `json:"contig" yaml:"contig"`
	URL             string         `json:"url,omitempty" yaml:"url,omitempty"`
	State           State          `json:"state" yaml:"state"`
	BytesDownloaded int64          `json:"bytesDownloaded" yaml:"bytes_downloaded"`
	RecordsKept     int64          `json:"recordsKept" yaml:"records_kept"`
	RecordsTotal    int64          `json:"recordsTotal" yaml:"records_total"`
	HeaderLines     int64          `json:"headerLines" yaml:"header_lines"`
	Unparseable     int64          `json:"unparseable" yaml:"unparseable"`
	ChecksumOK      bool           `json:"checksumOk" yaml:"checksum_ok"`
	ChecksumStatus  ChecksumStatus `json:"checksumStatus" yaml:"checksum_status"`
	Algorithm       string         `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Digest          string         `json:"digest,omitempty" yaml:"digest,omitempty"`
	OutputPath      string         `json:"outputPath,omitempty" yaml:"output_path,omitempty"`
	Error           ErrorKind      `json:"error,omitempty" yaml:"error,omitempty"`
	Detail          string         `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration        time.Duration  `json:"durationNs" yaml:"duration"`
}

// Failed reports whether the contig ended in the failed state.
func (r *RetrievalResult) Failed() bool {
	return r.State == StateFailed
}

// Fail moves the result to the failed state with the given kind and cause.
func (r *RetrievalResult) Fail(kind ErrorKind, err error) {
	r.State = StateFailed
	r.Error = kind
	if err != nil {
		r.Detail = err.Error()
	}
}

// Summary aggregates all per-contig results of one run.
type Summary struct {
	RunID      string            `json:"runId" yaml:"run_id"`
	StartedAt  time.Time         `json:"startedAt" yaml:"started_at"`
	FinishedAt time.Time         `json:"finishedAt" yaml:"finished_at"`
	Results    []RetrievalResult `json:"results" yaml:"results"`
	Warnings   []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Sort orders results by contig name for stable reporting.
func (s *Summary) Sort() {
	sort.Slice(s.Results, func(i, j int) bool {
		return s.Results[i].Contig < s.Results[j].Contig
	})
}

// Failed returns the number of contigs that ended in the failed state.
func (s *Summary) Failed() int {
	n := 0
	for i := range s.Results {
		if s.Results[i].Failed() {
			n++
		}
	}
	return n
}

// Succeeded returns the number of contigs that reached done.
func (s *Summary) Succeeded() int {
	return len(s.Results) - s.Failed()
}

// ExitCode derives the process exit status: success only if no contig failed.
func (s *Summary) ExitCode() ExitCode {
	if s.Failed() > 0 {
		return ExitPartialFailure
	}
	return ExitSuccess
}

// ExitCode defines the CLI exit codes. Scripts rely on these values to
// tell a clean run from a run where some contig failed.
type ExitCode int

const (
	// ExitSuccess indicates every contig reached done.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidInput indicates the region list, URL catalog or
	// configuration could not be loaded or validated.
	ExitInvalidInput ExitCode = 2

	// ExitPartialFailure indicates the run completed but at least one
	// contig ended in the failed state.
	ExitPartialFailure ExitCode = 3

	// ExitInterrupted indicates the run was cancelled by a signal.
	ExitInterrupted ExitCode = 130
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
