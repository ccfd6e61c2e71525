package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/vcf-region-fetch/internal/catalog"
	"github.com/shinji-kodama/vcf-region-fetch/internal/config"
	"github.com/shinji-kodama/vcf-region-fetch/internal/fetch"
	"github.com/shinji-kodama/vcf-region-fetch/internal/interval"
	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
	"github.com/shinji-kodama/vcf-region-fetch/internal/pipeline"
	"github.com/shinji-kodama/vcf-region-fetch/internal/progress"
)

// fetchFlags holds the flag values for the fetch command. Run options are
// collected in a config.Config and only copied over the loaded config for
// flags the user actually set, so flags beat env and file values.
type fetchFlags struct {
	bed         string
	urls        string
	summaryFile string
	progress    bool
	cfg         config.Config
}

// NewFetchCommand creates the "fetch" cobra command.
func NewFetchCommand() *cobra.Command {
	flags := &fetchFlags{cfg: config.Default()}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch, filter and verify one VCF per contig",
		Long: `Fetch every contig named in the BED file from its catalog URL, keep the
records that overlap a region, and verify the raw download checksum.

Output goes to <out-dir>/<contig>.vcf.gz (or .vcf with --output-compression
none). A file whose checksum does not match is kept as <name>.unverified
unless --discard-unverified is given. The command exits non-zero if any
contig failed.

Examples:
  vcf-region-fetch fetch --bed regions.bed --urls urls.csv
  vcf-region-fetch fetch --bed regions.bed --urls urls.yaml -j 8 --max-rate 50MiB
  vcf-region-fetch fetch --bed regions.bed --urls urls.csv --json --summary-file run.yaml`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.bed, "bed", "", "Region list (BED: contig, start, end; 0-based half-open)")
	f.StringVar(&flags.urls, "urls", "", "URL catalog (.csv: contig,checksum,url[,algorithm] or .yaml)")
	f.StringVar(&flags.summaryFile, "summary-file", "", "Also write the run summary to this file (.yaml/.yml or .json)")
	f.BoolVar(&flags.progress, "progress", false, "Show per-contig progress on stderr")

	f.StringVarP(&flags.cfg.OutDir, "out-dir", "o", flags.cfg.OutDir, "Directory for filtered output files")
	f.IntVarP(&flags.cfg.Parallel, "parallel", "j", flags.cfg.Parallel, "Number of contigs fetched at once")
	f.StringVar(&flags.cfg.ChecksumAlgo, "checksum-algo", flags.cfg.ChecksumAlgo, "Default checksum algorithm: md5, sha1, sha256, sha512, xxh64")
	f.StringVar(&flags.cfg.Codec, "codec", flags.cfg.Codec, "Input decompression: auto, bgzf, gzip, none")
	f.StringVar(&flags.cfg.OutputCompression, "output-compression", flags.cfg.OutputCompression, "Output container: bgzf or none")
	f.BoolVar(&flags.cfg.PreserveHeaders, "preserve-headers", flags.cfg.PreserveHeaders, "Copy VCF header lines into the output")
	f.BoolVar(&flags.cfg.DiscardUnverified, "discard-unverified", flags.cfg.DiscardUnverified, "Delete output whose checksum does not match")
	f.BoolVar(&flags.cfg.MatchContigAliases, "match-contig-aliases", flags.cfg.MatchContigAliases, "Treat chr1/1 and chrM/MT as the same contig")
	f.Var(&flags.cfg.MaxRate, "max-rate", "Aggregate download limit per second, e.g. 10MiB (0 = unlimited)")
	f.Var(&flags.cfg.BufferSize, "buffer-size", "Decoder read buffer size")
	f.IntVar(&flags.cfg.BGZFWorkers, "bgzf-workers", flags.cfg.BGZFWorkers, "BGZF block decoders per stream")
	f.Var(&flags.cfg.Timeout, "timeout", "Connect and response-header timeout")

	_ = cmd.MarkFlagRequired("bed")
	_ = cmd.MarkFlagRequired("urls")

	return cmd
}

// applyFetchFlags copies explicitly set flags from src onto dst.
func applyFetchFlags(cmd *cobra.Command, src config.Config) func(*config.Config) {
	return func(dst *config.Config) {
		changed := cmd.Flags().Changed
		if changed("out-dir") {
			dst.OutDir = src.OutDir
		}
		if changed("parallel") {
			dst.Parallel = src.Parallel
		}
		if changed("checksum-algo") {
			dst.ChecksumAlgo = src.ChecksumAlgo
		}
		if changed("codec") {
			dst.Codec = src.Codec
		}
		if changed("output-compression") {
			dst.OutputCompression = src.OutputCompression
		}
		if changed("preserve-headers") {
			dst.PreserveHeaders = src.PreserveHeaders
		}
		if changed("discard-unverified") {
			dst.DiscardUnverified = src.DiscardUnverified
		}
		if changed("match-contig-aliases") {
			dst.MatchContigAliases = src.MatchContigAliases
		}
		if changed("max-rate") {
			dst.MaxRate = src.MaxRate
		}
		if changed("buffer-size") {
			dst.BufferSize = src.BufferSize
		}
		if changed("bgzf-workers") {
			dst.BGZFWorkers = src.BGZFWorkers
		}
		if changed("timeout") {
			dst.Timeout = src.Timeout
		}
	}
}

// runFetch loads the inputs, runs the pipeline and reports the summary.
func runFetch(cmd *cobra.Command, flags *fetchFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := loadConfig(cmd, applyFetchFlags(cmd, flags.cfg))
	if err != nil {
		return err
	}

	idx, cat, err := loadInputs(flags.bed, flags.urls)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to create output directory %s", cfg.OutDir), err)
	}

	pc, err := cfg.Pipeline()
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidInput, "invalid configuration", err)
	}
	pc.Logger = logger

	var reporter *progress.Reporter
	if flags.progress {
		reporter = progress.NewReporter(cmd.ErrOrStderr(), logger, 200*time.Millisecond)
		reporter.Start()
		pc.Progress = reporter
	}

	logger.Debug("starting run",
		"contigs", idx.Len(),
		"catalog", cat.Len(),
		"out_dir", cfg.OutDir,
		"parallel", cfg.Parallel,
		"max_rate", cfg.MaxRate.String())

	opener := fetch.NewHTTPOpener(cfg.Timeout.Std(), userAgent(cfg))
	sum := pipeline.Run(ctx, pc, idx, cat, opener)

	if reporter != nil {
		// Finish the last frame before the table is printed.
		reporter.Stop()
	}

	if err := printSummary(cmd.OutOrStdout(), &sum); err != nil {
		return err
	}
	if flags.summaryFile != "" {
		if err := WriteSummaryFile(flags.summaryFile, &sum); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to write summary file", err)
		}
	}

	if ctx.Err() != nil {
		return model.NewCLIError(model.ExitInterrupted, "interrupted")
	}
	if n := sum.Failed(); n > 0 {
		return model.NewCLIError(sum.ExitCode(),
			fmt.Sprintf("%d of %d contigs failed", n, len(sum.Results)))
	}
	return nil
}

func userAgent(cfg config.Config) string {
	if cfg.UserAgent == "" {
		return ""
	}
	return cfg.UserAgent + "/" + Version
}

// loadInputs reads the region list and the URL catalog. Any problem with
// either is fatal for the whole run.
func loadInputs(bedPath, urlsPath string) (*interval.Index, *catalog.Catalog, error) {
	regions, err := interval.LoadBEDFile(bedPath)
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitInvalidInput, "failed to load region list", err)
	}
	idx, err := interval.Build(regions)
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitInvalidInput, "invalid region list", err)
	}

	entries, err := catalog.LoadFile(urlsPath)
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitInvalidInput, "failed to load URL catalog", err)
	}
	return idx, catalog.Build(entries), nil
}

// printSummary outputs the run summary in text or JSON format, depending
// on the global --json flag.
func printSummary(w io.Writer, sum *model.Summary) error {
	if IsJSONOutput() {
		if sum.Results == nil {
			sum.Results = []model.RetrievalResult{}
		}
		data, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	printSummaryText(w, sum)
	return nil
}

// printSummaryText outputs one row per contig:
//
//	CONTIG  STATE   KEPT  RECORDS  UNPARSEABLE  DOWNLOADED  CHECKSUM  RESULT
//	chr1    done    1042  88211    0            1.2GB       ok        out/chr1.vcf.gz
//	chr2    failed  0     0        0            0B          unchecked missing_source: no URL listed for contig "chr2"
func printSummaryText(w io.Writer, sum *model.Summary) {
	for _, warning := range sum.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if len(sum.Results) == 0 {
		_, _ = fmt.Fprintln(w, "No contigs in the region list.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CONTIG\tSTATE\tKEPT\tRECORDS\tUNPARSEABLE\tDOWNLOADED\tCHECKSUM\tRESULT")
	for i := range sum.Results {
		r := &sum.Results[i]
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.Contig,
			r.State,
			r.RecordsKept,
			r.RecordsTotal,
			r.Unparseable,
			units.HumanSize(float64(r.BytesDownloaded)),
			r.ChecksumStatus,
			resultColumn(r),
		)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "\n%d succeeded, %d failed (run %s)\n", sum.Succeeded(), sum.Failed(), sum.RunID)
}

// resultColumn is the output path for successes and the error kind plus
// detail for failures.
func resultColumn(r *model.RetrievalResult) string {
	if !r.Failed() {
		return r.OutputPath
	}
	s := r.Error.String()
	if r.Detail != "" {
		s += ": " + r.Detail
	}
	if r.OutputPath != "" {
		s += " (kept " + r.OutputPath + ")"
	}
	return s
}

// WriteSummaryFile writes sum as YAML when path ends in .yaml or .yml and
// as indented JSON otherwise.
func WriteSummaryFile(path string, sum *model.Summary) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(sum)
	default:
		data, err = json.MarshalIndent(sum, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
