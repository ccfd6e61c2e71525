// Package filter classifies decoded VCF lines against an interval index.
//
// Only the first two tab-separated columns (CHROM and POS) are interpreted.
// Every line parses into exactly one of three kinds (record, header,
// unparseable) and callers switch on Kind rather than on errors.
package filter

import (
	"bytes"
	"strings"
)

// Kind is the parse outcome for one line.
type Kind int

const (
	// KindRecord is a data line with a usable CHROM and POS.
	KindRecord Kind = iota

	// KindHeader is a meta/header line ("#" prefix) or an empty line.
	KindHeader

	// KindUnparseable is a data line whose CHROM or POS cannot be read.
	KindUnparseable
)

// String returns a short name for logs and tests.
func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindHeader:
		return "header"
	case KindUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Parsed is the result of Parse. Contig and Pos are only meaningful for
// KindRecord; Pos is already converted to the 0-based convention.
type Parsed struct {
	Kind   Kind
	Contig []byte
	Pos    int64
}

// Parse extracts CHROM and POS from a VCF line. POS is 1-based in the file
// and returned 0-based (POS-1). A POS that is not a positive integer makes
// the line unparseable.
func Parse(line []byte) Parsed {
	if len(line) == 0 || line[0] == '#' {
		return Parsed{Kind: KindHeader}
	}

	tab := bytes.IndexByte(line, '\t')
	if tab <= 0 {
		return Parsed{Kind: KindUnparseable}
	}
	contig := line[:tab]

	rest := line[tab+1:]
	if end := bytes.IndexByte(rest, '\t'); end >= 0 {
		rest = rest[:end]
	}
	pos, ok := parsePos(rest)
	if !ok {
		return Parsed{Kind: KindUnparseable}
	}
	return Parsed{Kind: KindRecord, Contig: contig, Pos: pos - 1}
}

// parsePos parses a strictly positive decimal without allocating.
func parsePos(b []byte) (int64, bool) {
	if len(b) == 0 || len(b) > 18 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, n > 0
}

// Verdict is the keep/drop decision for one line.
type Verdict int

const (
	Drop Verdict = iota
	Keep
	Unparseable
)

// String returns a short name for logs and tests.
func (v Verdict) String() string {
	switch v {
	case Keep:
		return "keep"
	case Drop:
		return "drop"
	case Unparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Querier answers point-overlap queries; *interval.Index satisfies it.
type Querier interface {
	Query(contig string, pos int64) bool
}

// Classify decides what to do with a line from the file of contig.
// Header lines and records on another contig are dropped; records whose
// 0-based position overlaps a region of contig are kept.
func Classify(line []byte, idx Querier, contig string) Verdict {
	return NewMatcher(idx, contig, false).Classify(line)
}

// Matcher is Classify bound to one contig, with optional alias matching
// ("chr1" ≡ "1", "chrM" ≡ "MT") for sources whose CHROM naming differs
// from the region list.
type Matcher struct {
	idx     Querier
	contig  string
	aliases bool
	norm    string
}

// NewMatcher binds idx to contig for repeated classification.
func NewMatcher(idx Querier, contig string, aliases bool) *Matcher {
	m := &Matcher{idx: idx, contig: contig, aliases: aliases}
	if aliases {
		m.norm = NormalizeContig(contig)
	}
	return m
}

// Classify returns the verdict for line.
func (m *Matcher) Classify(line []byte) Verdict {
	return m.Decide(Parse(line))
}

// Decide returns the verdict for an already parsed line.
func (m *Matcher) Decide(p Parsed) Verdict {
	switch p.Kind {
	case KindHeader:
		return Drop
	case KindUnparseable:
		return Unparseable
	}
	if !m.sameContig(p.Contig) {
		return Drop
	}
	if m.idx.Query(m.contig, p.Pos) {
		return Keep
	}
	return Drop
}

func (m *Matcher) sameContig(c []byte) bool {
	if string(c) == m.contig {
		return true
	}
	return m.aliases && NormalizeContig(string(c)) == m.norm
}

// NormalizeContig maps common naming variants onto one form: the "chr"
// prefix is dropped and the mitochondrial names M/MT collapse to "MT".
func NormalizeContig(name string) string {
	n := name
	if len(n) > 3 && strings.EqualFold(n[:3], "chr") {
		n = n[3:]
	}
	if strings.EqualFold(n, "M") || strings.EqualFold(n, "MT") {
		return "MT"
	}
	return n
}
