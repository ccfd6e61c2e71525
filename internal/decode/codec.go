// Package decode turns a raw (possibly compressed) byte stream into a lazy,
// forward-only sequence of text lines.
//
// Decompression runs on bounded buffers: the stream is never materialised in
// memory, and a single line may not exceed a configurable cap. Malformed
// compressed input (bad magic, truncated block, CRC mismatch inside the
// container) surfaces as a *DecodeError, which is distinct from the outer
// file checksum verified by package checksum.
package decode

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Codec selects how the raw stream is decompressed.
type Codec string

const (
	// CodecAuto sniffs the first bytes of the stream.
	CodecAuto Codec = "auto"

	// CodecBGZF is blocked gzip, the container used for tabix-indexed VCFs.
	CodecBGZF Codec = "bgzf"

	// CodecGzip is ordinary (possibly multi-member) gzip.
	CodecGzip Codec = "gzip"

	// CodecNone passes the bytes through as plain text.
	CodecNone Codec = "none"
)

// String returns the string representation of Codec.
func (c Codec) String() string {
	return string(c)
}

// ParseCodec converts a flag value to a Codec.
func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CodecAuto, CodecBGZF, CodecGzip, CodecNone:
		return c, nil
	case "":
		return CodecAuto, nil
	default:
		return "", fmt.Errorf("invalid codec %q (valid: auto, bgzf, gzip, none)", s)
	}
}

// gzip member header layout used for sniffing (RFC 1952, SAM spec §4.1).
const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	flagExtra   = 0x04
	sniffLength = 16
)

// Sniff inspects a gzip member header and reports the codec it implies.
// A gzip header with an FEXTRA field whose first subfield is "BC" is BGZF.
func Sniff(head []byte) Codec {
	if len(head) < 2 || head[0] != gzipID1 || head[1] != gzipID2 {
		return CodecNone
	}
	if len(head) >= sniffLength && head[3]&flagExtra != 0 && head[12] == 'B' && head[13] == 'C' {
		return CodecBGZF
	}
	return CodecGzip
}

// decompressor wraps br according to codec. The returned closer releases
// decoder resources but never closes the underlying source.
func decompressor(br *bufio.Reader, codec Codec, workers int) (io.Reader, io.Closer, Codec, error) {
	if codec == CodecAuto {
		head, _ := br.Peek(sniffLength)
		codec = Sniff(head)
	}

	switch codec {
	case CodecBGZF:
		bg, err := bgzf.NewReader(br, workers)
		if err != nil {
			return nil, nil, codec, errors.Wrap(err, "decode: open bgzf stream")
		}
		return bg, bg, codec, nil

	case CodecGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, codec, errors.Wrap(err, "decode: open gzip stream")
		}
		gz.Multistream(true)
		return gz, gz, codec, nil

	case CodecNone:
		return br, nopCloser{}, codec, nil

	default:
		return nil, nil, codec, errors.Errorf("decode: unsupported codec %q", codec)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
