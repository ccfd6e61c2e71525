package model

import (
	"context"
	"errors"
)

// Sentinel errors for each failure kind. Packages wrap these with context
// (fmt.Errorf("...: %w", ErrX)) so callers can classify with errors.Is.
var (
	ErrMalformedRegion  = errors.New("malformed region")
	ErrMissingSource    = errors.New("missing source")
	ErrNetwork          = errors.New("network error")
	ErrDecode           = errors.New("decode error")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrOutput           = errors.New("output error")
)

// KindOf maps an error chain to its ErrorKind. Cancellation is checked
// first because a cancelled read usually surfaces wrapped in a network
// or decode error as well.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrMalformedRegion):
		return KindMalformedRegion
	case errors.Is(err, ErrMissingSource):
		return KindMissingSource
	case errors.Is(err, ErrNetwork):
		return KindNetworkError
	case errors.Is(err, ErrDecode):
		return KindDecodeError
	case errors.Is(err, ErrChecksumMismatch):
		return KindChecksumMismatch
	case errors.Is(err, ErrOutput):
		return KindOutputError
	default:
		// Unclassified errors come from the transport.
		return KindNetworkError
	}
}
