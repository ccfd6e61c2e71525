// Package checksum computes content digests over raw downloaded bytes.
//
// The validator is fed the compressed stream exactly as received, before any
// decompression, so a truncated or corrupted download is caught even when the
// decoder happens to stop cleanly at a block boundary. The digest algorithm is
// selected per source entry because URL catalogs do not agree on one scheme.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"
)

// Algorithm names a supported digest scheme.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	XXH64  Algorithm = "xxh64"
)

// Default is the scheme used when neither the entry nor the run names one.
// Published gnomAD URL lists carry MD5 sums.
const Default = MD5

var constructors = map[Algorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA512: sha512.New,
	XXH64:  func() hash.Hash { return xxhash.New() },
}

// Lookup resolves a case-insensitive algorithm name.
func Lookup(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := constructors[alg]; !ok {
		return "", fmt.Errorf("unsupported checksum algorithm %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
	return alg, nil
}

// Names lists the supported algorithm names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for alg := range constructors {
		names = append(names, string(alg))
	}
	sort.Strings(names)
	return names
}

// Validator accumulates a digest incrementally. It implements io.Writer so
// it can observe a stream through io.TeeReader.
type Validator struct {
	alg Algorithm
	h   hash.Hash
	n   int64
}

// Start returns a fresh validator for alg. Unknown algorithms panic; resolve
// names with Lookup first.
func Start(alg Algorithm) *Validator {
	ctor, ok := constructors[alg]
	if !ok {
		panic(fmt.Sprintf("checksum: unknown algorithm %q", alg))
	}
	return &Validator{alg: alg, h: ctor()}
}

// Update feeds the next chunk of raw bytes.
func (v *Validator) Update(chunk []byte) {
	// hash.Hash.Write never returns an error.
	_, _ = v.h.Write(chunk)
	v.n += int64(len(chunk))
}

// Write implements io.Writer.
func (v *Validator) Write(p []byte) (int, error) {
	v.Update(p)
	return len(p), nil
}

// Finalize returns the lowercase hex digest of everything fed so far.
// It does not reset the state; further updates extend the same stream.
func (v *Validator) Finalize() string {
	return hex.EncodeToString(v.h.Sum(nil))
}

// Algorithm returns the scheme this validator computes.
func (v *Validator) Algorithm() Algorithm {
	return v.alg
}

// Size returns the number of bytes fed so far.
func (v *Validator) Size() int64 {
	return v.n
}

// Sum computes the digest of b in one call.
func Sum(alg Algorithm, b []byte) string {
	v := Start(alg)
	v.Update(b)
	return v.Finalize()
}

// File computes the digest of the file at path.
func File(alg Algorithm, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	v := Start(alg)
	if _, err := io.Copy(v, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return v.Finalize(), nil
}

// Expected is a resolved expected checksum: the algorithm to compute and
// the hex value to compare against.
type Expected struct {
	Algorithm Algorithm
	Hex       string
}

// ParseExpected resolves the algorithm for a catalog checksum value.
//
// Precedence: an "algo:hex" prefix on the value (OCI digest form), then the
// entry's algorithm column, then the run default. The value must be hex of
// exactly the algorithm's digest length, so a mistyped catalog entry fails
// before anything is downloaded.
func ParseExpected(value, entryAlgorithm string, fallback Algorithm) (Expected, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Expected{}, fmt.Errorf("empty expected checksum")
	}

	if strings.Contains(value, ":") {
		d := digest.Digest(value)
		alg, err := Lookup(string(d.Algorithm()))
		if err != nil {
			return Expected{}, err
		}
		if d.Algorithm().Available() {
			if err := d.Validate(); err != nil {
				return Expected{}, fmt.Errorf("invalid %s digest: %w", alg, err)
			}
		}
		if err := checkHex(alg, d.Encoded()); err != nil {
			return Expected{}, err
		}
		return Expected{Algorithm: alg, Hex: strings.ToLower(d.Encoded())}, nil
	}

	alg := fallback
	if entryAlgorithm != "" {
		var err error
		if alg, err = Lookup(entryAlgorithm); err != nil {
			return Expected{}, err
		}
	}
	if err := checkHex(alg, value); err != nil {
		return Expected{}, err
	}
	return Expected{Algorithm: alg, Hex: strings.ToLower(value)}, nil
}

// checkHex reports whether value is hex of alg's digest length.
func checkHex(alg Algorithm, value string) error {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("expected %s checksum is not hex: %q", alg, value)
	}
	if want := constructors[alg]().Size(); len(raw) != want {
		return fmt.Errorf("expected %s checksum has %d hex digits, want %d: %q", alg, len(value), 2*want, value)
	}
	return nil
}

// Matches reports whether actual (hex) equals the expected value,
// ignoring case.
func (e Expected) Matches(actual string) bool {
	return strings.EqualFold(e.Hex, actual)
}
