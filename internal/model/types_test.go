package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegion_Validate checks the half-open interval invariants.
func TestRegion_Validate(t *testing.T) {
	tests := []struct {
		name    string
		region  Region
		wantErr bool
	}{
		{"valid", Region{Contig: "chr1", Start: 100, End: 200}, false},
		{"single base", Region{Contig: "chr1", Start: 0, End: 1}, false},
		{"empty interval", Region{Contig: "chr1", Start: 5, End: 5}, true},
		{"reversed", Region{Contig: "chr1", Start: 200, End: 100}, true},
		{"negative start", Region{Contig: "chr1", Start: -1, End: 10}, true},
		{"no contig", Region{Start: 0, End: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedRegion)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegion_ContainsAndString(t *testing.T) {
	r := Region{Contig: "chr1", Start: 100, End: 200}
	assert.False(t, r.Contains(99))
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(199))
	assert.False(t, r.Contains(200))
	assert.Equal(t, "chr1:100-200", r.String())
}

// TestState_IsTerminal verifies only done and failed end the state machine.
func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{StatePending, StateResolving, StateFetching, StateStreaming, StateFinalizing} {
		assert.False(t, s.IsTerminal(), s.String())
		assert.True(t, s.IsValid(), s.String())
	}
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, State("paused").IsValid())
}

// TestParseState verifies string-to-state conversion,
// including case normalization and error cases.
func TestParseState(t *testing.T) {
	tests := []struct {
		input    string
		expected State
		hasError bool
	}{
		{"streaming", StateStreaming, false},
		{"Done", StateDone, false}, // case insensitive
		{"FAILED", StateFailed, false},
		{"paused", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseState(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"malformed", fmt.Errorf("region #2: %w", ErrMalformedRegion), KindMalformedRegion},
		{"missing", fmt.Errorf("%w: chr9", ErrMissingSource), KindMissingSource},
		{"network", fmt.Errorf("%w: GET x: 503", ErrNetwork), KindNetworkError},
		{"decode", fmt.Errorf("%w: bad block", ErrDecode), KindDecodeError},
		{"checksum", fmt.Errorf("%w: abc", ErrChecksumMismatch), KindChecksumMismatch},
		{"output", fmt.Errorf("%w: disk full", ErrOutput), KindOutputError},
		// A cancelled read usually also looks like a transport failure.
		{"cancelled wins", fmt.Errorf("%w: read: %w", ErrNetwork, context.Canceled), KindCancelled},
		{"deadline", context.DeadlineExceeded, KindCancelled},
		{"unclassified", errors.New("connection reset"), KindNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetrievalResult_Fail(t *testing.T) {
	r := RetrievalResult{Contig: "chr1", State: StateStreaming}
	assert.False(t, r.Failed())

	r.Fail(KindDecodeError, errors.New("truncated block"))
	assert.True(t, r.Failed())
	assert.Equal(t, KindDecodeError, r.Error)
	assert.Equal(t, "truncated block", r.Detail)
}

// TestSummary_ExitCode checks that any failed contig makes the run fail.
func TestSummary_ExitCode(t *testing.T) {
	sum := Summary{Results: []RetrievalResult{
		{Contig: "chr2", State: StateDone},
		{Contig: "chr1", State: StateDone},
	}}
	assert.Equal(t, ExitSuccess, sum.ExitCode())
	assert.Equal(t, 2, sum.Succeeded())

	sum.Results = append(sum.Results, RetrievalResult{Contig: "chrX", State: StateFailed, Error: KindMissingSource})
	assert.Equal(t, 1, sum.Failed())
	assert.Equal(t, ExitPartialFailure, sum.ExitCode())

	sum.Sort()
	assert.Equal(t, []string{"chr1", "chr2", "chrX"},
		[]string{sum.Results[0].Contig, sum.Results[1].Contig, sum.Results[2].Contig})
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitInvalidInput, "invalid region list")
		assert.Equal(t, ExitInvalidInput, err.Code)
		assert.Equal(t, "invalid region list", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := fmt.Errorf("line 3: %w", ErrMalformedRegion)
		err := WrapCLIError(ExitInvalidInput, "invalid region list", inner)
		assert.Contains(t, err.Error(), "line 3")
		assert.Equal(t, inner, err.Unwrap())
		assert.True(t, errors.Is(err, ErrMalformedRegion))
	})
}
