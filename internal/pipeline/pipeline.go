// Package pipeline drives the per-contig retrieval state machine.
//
// Each contig in the interval index gets one worker. A worker resolves the
// contig's source, opens the raw stream, and pushes it through the checksum
// validator and the decoder in a single pass. Kept lines go to a partial
// output file that is published only once the digest matches:
//
//	pending → resolving → fetching → streaming → finalizing → done
//	                                                        ↘ failed(kind)
//
// Workers run on an errgroup bounded by Config.Parallelism and hand their
// results to one collector goroutine; nothing else is shared between them
// except the read-only index and catalog.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shinji-kodama/vcf-region-fetch/internal/catalog"
	"github.com/shinji-kodama/vcf-region-fetch/internal/checksum"
	"github.com/shinji-kodama/vcf-region-fetch/internal/decode"
	"github.com/shinji-kodama/vcf-region-fetch/internal/fetch"
	"github.com/shinji-kodama/vcf-region-fetch/internal/filter"
	"github.com/shinji-kodama/vcf-region-fetch/internal/interval"
	"github.com/shinji-kodama/vcf-region-fetch/internal/logging"
	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
	"github.com/shinji-kodama/vcf-region-fetch/internal/progress"
)

// DefaultParallelism is the number of contigs processed at once.
const DefaultParallelism = 4

// progressStep is how many raw bytes pass between streaming events.
const progressStep = 1 << 20

// cancelCheckLines is how often the line loop polls for cancellation.
const cancelCheckLines = 4096

// Config holds the run options. Zero fields fall back to defaults, except
// PreserveHeaders, which callers should take from DefaultConfig.
type Config struct {
	// Parallelism bounds concurrent workers.
	Parallelism int

	// OutDir receives one output file per contig.
	OutDir string

	// DefaultAlgorithm is used for entries with neither a prefix nor an
	// algorithm column.
	DefaultAlgorithm checksum.Algorithm

	// Codec is the input decompression; CodecAuto sniffs each stream.
	Codec decode.Codec

	// OutputCompression is the container of the output files.
	OutputCompression Compression

	// PreserveHeaders copies "#" lines into the output.
	PreserveHeaders bool

	// DiscardUnverified removes output whose checksum did not match instead
	// of keeping it as <name>.unverified.
	DiscardUnverified bool

	// MatchContigAliases treats "chr1" and "1" (and chrM/MT) as the same
	// contig when comparing record CHROM with the worker contig.
	MatchContigAliases bool

	// Limiter caps the aggregate download rate. Nil means unlimited.
	Limiter *rate.Limiter

	// BufferSize is the decoder read buffer size.
	BufferSize int

	// Workers is the number of BGZF block goroutines per stream.
	Workers int

	// Progress receives state changes and byte counts.
	Progress progress.Sink

	// Logger receives per-contig log lines.
	Logger *slog.Logger
}

// DefaultConfig returns the options the CLI starts from.
func DefaultConfig() Config {
	return Config{
		Parallelism:       DefaultParallelism,
		OutDir:            ".",
		DefaultAlgorithm:  checksum.Default,
		Codec:             decode.CodecAuto,
		OutputCompression: CompressionBGZF,
		PreserveHeaders:   true,
		BufferSize:        decode.DefaultBufferSize,
		Workers:           1,
	}
}

func (c Config) withDefaults() Config {
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.DefaultAlgorithm == "" {
		c.DefaultAlgorithm = checksum.Default
	}
	if c.Codec == "" {
		c.Codec = decode.CodecAuto
	}
	if c.OutputCompression == "" {
		c.OutputCompression = CompressionBGZF
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Progress == nil {
		c.Progress = progress.Discard{}
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	return c
}

// Run processes every contig of idx and returns one result per contig,
// sorted by contig name. It never returns early: a cancelled context turns
// the remaining contigs into failed(cancelled) results.
func Run(ctx context.Context, cfg Config, idx *interval.Index, cat *catalog.Catalog, opener fetch.Opener) model.Summary {
	cfg = cfg.withDefaults()

	sum := model.Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := cfg.Logger.With("run_id", sum.RunID)
	for _, w := range cat.Warnings() {
		logger.Warn("duplicate catalog entry", "contig", w.Contig, "kept", w.Kept, "discarded", w.Discarded)
		sum.Warnings = append(sum.Warnings, w.String())
	}

	contigs := idx.Contigs()
	for _, contig := range contigs {
		cfg.Progress.Send(progress.Event{Contig: contig, State: model.StatePending, Total: -1})
	}

	results := make(chan model.RetrievalResult)
	collected := make(chan []model.RetrievalResult, 1)
	go func() {
		all := make([]model.RetrievalResult, 0, len(contigs))
		for r := range results {
			all = append(all, r)
		}
		collected <- all
	}()

	var g errgroup.Group
	g.SetLimit(cfg.Parallelism)
	for _, contig := range contigs {
		w := &worker{
			cfg:    cfg,
			idx:    idx,
			cat:    cat,
			opener: opener,
			contig: contig,
			logger: logger.With("contig", contig),
		}
		g.Go(func() error {
			results <- w.run(ctx)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	sum.Results = <-collected
	sum.Sort()
	sum.FinishedAt = time.Now()

	logger.Info("run finished",
		"contigs", len(sum.Results),
		"failed", sum.Failed(),
		"elapsed", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
	return sum
}

// worker owns one contig for the whole run.
type worker struct {
	cfg    Config
	idx    *interval.Index
	cat    *catalog.Catalog
	opener fetch.Opener
	contig string
	logger *slog.Logger

	res model.RetrievalResult
}

func (w *worker) run(ctx context.Context) model.RetrievalResult {
	start := time.Now()
	w.res = model.RetrievalResult{
		Contig:         w.contig,
		State:          model.StatePending,
		ChecksumStatus: model.ChecksumUnchecked,
	}

	w.process(ctx)

	w.res.Duration = time.Since(start)
	w.emit(-1)
	if w.res.Failed() {
		w.logger.Warn("contig failed",
			"error", w.res.Error.String(),
			"detail", w.res.Detail,
			"checksum", w.res.ChecksumStatus)
	} else {
		w.logger.Info("contig done",
			"kept", w.res.RecordsKept,
			"records", w.res.RecordsTotal,
			"bytes", w.res.BytesDownloaded,
			"output", w.res.OutputPath)
	}
	return w.res
}

func (w *worker) transition(s model.State, total int64) {
	w.res.State = s
	w.logger.Debug("state", "state", s.String())
	w.emit(total)
}

func (w *worker) emit(total int64) {
	w.cfg.Progress.Send(progress.Event{
		Contig: w.contig,
		State:  w.res.State,
		Bytes:  w.res.BytesDownloaded,
		Total:  total,
		Kept:   w.res.RecordsKept,
		Err:    w.res.Error,
	})
}

func (w *worker) fail(err error) {
	w.res.Fail(model.KindOf(err), err)
}

func (w *worker) process(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		w.fail(err)
		return
	}

	// Resolving
	w.transition(model.StateResolving, -1)
	entry, err := w.cat.Lookup(w.contig)
	if err != nil {
		w.fail(err)
		return
	}
	w.res.URL = entry.URL

	exp, err := checksum.ParseExpected(entry.ExpectedChecksum, entry.Algorithm, w.cfg.DefaultAlgorithm)
	if err != nil {
		w.fail(fmt.Errorf("%w: bad checksum for %s: %w", model.ErrMissingSource, w.contig, err))
		return
	}
	w.res.Algorithm = string(exp.Algorithm)

	// Fetching
	w.transition(model.StateFetching, -1)
	body, err := w.opener.Open(ctx, entry.URL)
	if err != nil {
		w.fail(err)
		return
	}
	defer func() { _ = body.Close() }()

	validator := checksum.Start(exp.Algorithm)
	var reported int64
	src := fetch.NewSourceReader(fetch.RateLimit(ctx, body, w.cfg.Limiter), func(n int64) {
		if n-reported >= progressStep {
			reported = n
			w.cfg.Progress.Send(progress.Event{Contig: w.contig, State: model.StateStreaming, Bytes: n, Total: body.Size})
		}
	})
	raw := io.TeeReader(src, validator)

	out, err := createOutput(w.cfg.OutDir, w.contig, w.cfg.OutputCompression, w.cfg.Workers)
	if err != nil {
		w.fail(err)
		return
	}

	// Streaming
	w.transition(model.StateStreaming, body.Size)
	streamErr := w.stream(ctx, raw, out)

	// Everything left on the wire still belongs to the digest, whether the
	// decoder stopped at the end of the data or on malformed input. A
	// cancelled run stops here instead; local sources would otherwise be
	// read to the end.
	var drainErr error
	if ctx.Err() == nil {
		_, drainErr = io.Copy(io.Discard, raw)
	}
	w.res.BytesDownloaded = src.N()

	complete := drainErr == nil && src.Err() == nil && ctx.Err() == nil
	if complete {
		w.res.Digest = validator.Finalize()
		if exp.Matches(w.res.Digest) {
			w.res.ChecksumStatus = model.ChecksumOK
			w.res.ChecksumOK = true
		} else {
			w.res.ChecksumStatus = model.ChecksumMismatch
		}
	} else {
		w.res.ChecksumStatus = model.ChecksumIndeterminate
	}

	switch {
	case ctx.Err() != nil:
		out.discard()
		w.fail(ctx.Err())
		return
	case src.Err() != nil:
		// Transport failures often reach the decoder first and come back
		// wrapped as decode errors; the source reader knows better.
		out.discard()
		w.fail(src.Err())
		return
	case streamErr != nil:
		out.discard()
		w.fail(streamErr)
		return
	case drainErr != nil:
		out.discard()
		w.fail(fmt.Errorf("%w: drain %s: %w", model.ErrNetwork, entry.URL, drainErr))
		return
	}

	// Finalizing
	w.transition(model.StateFinalizing, body.Size)
	if !w.res.ChecksumOK {
		mismatch := fmt.Errorf("%w: %s digest %s, expected %s",
			model.ErrChecksumMismatch, exp.Algorithm, w.res.Digest, exp.Hex)
		if w.cfg.DiscardUnverified {
			out.discard()
		} else if path, err := out.quarantine(); err != nil {
			out.discard()
			w.logger.Warn("could not keep unverified output", "error", err)
		} else {
			w.res.OutputPath = path
		}
		w.fail(mismatch)
		return
	}

	path, err := out.commit()
	if err != nil {
		out.discard()
		w.fail(err)
		return
	}
	w.res.OutputPath = path
	w.res.State = model.StateDone
}

// stream runs the decode, classify and write loop. It returns the first
// decode or output error; unparseable lines are only counted.
func (w *worker) stream(ctx context.Context, raw io.Reader, out *output) error {
	ls, err := decode.Open(raw, decode.Options{
		Codec:      w.cfg.Codec,
		BufferSize: w.cfg.BufferSize,
		Workers:    w.cfg.Workers,
	})
	if err != nil {
		return err
	}
	defer func() { _ = ls.Close() }()

	m := filter.NewMatcher(w.idx, w.contig, w.cfg.MatchContigAliases)
	for ls.Next() {
		if ls.Lines()%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := ls.Line()
		p := filter.Parse(line)
		if p.Kind == filter.KindHeader {
			if len(line) == 0 {
				continue
			}
			w.res.HeaderLines++
			if w.cfg.PreserveHeaders {
				if err := out.writeLine(line); err != nil {
					return err
				}
			}
			continue
		}

		w.res.RecordsTotal++
		switch m.Decide(p) {
		case filter.Keep:
			if err := out.writeLine(line); err != nil {
				return err
			}
			w.res.RecordsKept++
		case filter.Unparseable:
			w.res.Unparseable++
			if w.res.Unparseable == 1 {
				w.logger.Debug("unparseable line", "line", ls.Lines())
			}
		}
	}
	return ls.Err()
}
