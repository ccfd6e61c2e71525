package decode

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

const (
	// DefaultBufferSize bounds the raw and decompressed read buffers.
	DefaultBufferSize = 1 << 20

	// DefaultMaxLine caps a single decoded line. VCF INFO columns in large
	// releases can run to hundreds of KiB, so the cap is generous.
	DefaultMaxLine = 64 << 20
)

// Options tunes a LineStream. Zero values select the defaults.
type Options struct {
	// Codec selects decompression; CodecAuto sniffs the stream.
	Codec Codec

	// BufferSize is the size of each internal read buffer.
	BufferSize int

	// MaxLine is the longest line accepted before failing.
	MaxLine int

	// Workers is the number of BGZF block decoders (bgzf only).
	Workers int
}

func (o Options) withDefaults() Options {
	if o.Codec == "" {
		o.Codec = CodecAuto
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.MaxLine <= 0 {
		o.MaxLine = DefaultMaxLine
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// DecodeError reports malformed compressed input or an unreadable line.
// It matches model.ErrDecode under errors.Is.
type DecodeError struct {
	// Line is the number of lines successfully yielded before the failure.
	Line int64

	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error after line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, model.ErrDecode) true for every DecodeError.
func (e *DecodeError) Is(target error) bool { return target == model.ErrDecode }

// LineStream yields decoded lines one at a time. It consumes the source as
// it goes and cannot be restarted; decode the source again to replay it.
//
//	ls, err := decode.Open(r, decode.Options{})
//	for ls.Next() {
//	    use(ls.Line())
//	}
//	if err := ls.Err(); err != nil { ... }
type LineStream struct {
	br      *bufio.Reader
	dec     io.Closer
	codec   Codec
	maxLine int

	line  []byte
	acc   []byte
	lines int64
	done  bool
	err   error
}

// Open wraps r in a decompressor and line splitter. Header-level problems
// (e.g. a bad gzip magic number for an explicit codec) are reported
// immediately as a *DecodeError.
func Open(r io.Reader, opts Options) (*LineStream, error) {
	opts = opts.withDefaults()

	raw := bufio.NewReaderSize(r, opts.BufferSize)
	dr, closer, codec, err := decompressor(raw, opts.Codec, opts.Workers)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &LineStream{
		br:      bufio.NewReaderSize(dr, opts.BufferSize),
		dec:     closer,
		codec:   codec,
		maxLine: opts.MaxLine,
	}, nil
}

// Next advances to the next line, stripping the trailing "\n" or "\r\n".
// A final line without a newline is still yielded. It returns false at end
// of stream or on error; check Err to tell them apart.
func (s *LineStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	s.acc = s.acc[:0]
	for {
		chunk, err := s.br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if len(s.acc)+len(chunk) > s.maxLine {
				s.err = &DecodeError{Line: s.lines, Err: errors.Errorf("line exceeds %d bytes", s.maxLine)}
				return false
			}
			s.acc = append(s.acc, chunk...)
			continue
		}

		line := chunk
		if len(s.acc) > 0 {
			s.acc = append(s.acc, chunk...)
			line = s.acc
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = &DecodeError{Line: s.lines, Err: errors.Wrapf(err, "decode: read %s stream", s.codec)}
				return false
			}
			s.done = true
			if len(line) == 0 {
				return false
			}
		}

		s.line = trimEOL(line)
		s.lines++
		return true
	}
}

// Line returns the current line without its terminator. The slice is only
// valid until the next call to Next.
func (s *LineStream) Line() []byte {
	return s.line
}

// Lines returns the number of lines yielded so far.
func (s *LineStream) Lines() int64 {
	return s.lines
}

// Codec returns the codec in use after auto-detection.
func (s *LineStream) Codec() Codec {
	return s.codec
}

// Err returns the first non-EOF error encountered.
func (s *LineStream) Err() error {
	return s.err
}

// Close releases the decompressor. It does not close the source reader.
func (s *LineStream) Close() error {
	if s.dec == nil {
		return nil
	}
	return s.dec.Close()
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
