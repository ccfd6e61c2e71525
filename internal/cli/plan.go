package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vcf-region-fetch/internal/catalog"
	"github.com/shinji-kodama/vcf-region-fetch/internal/checksum"
	"github.com/shinji-kodama/vcf-region-fetch/internal/config"
	"github.com/shinji-kodama/vcf-region-fetch/internal/interval"
	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// planFlags holds the flag values for the plan command.
type planFlags struct {
	bed          string
	urls         string
	checksumAlgo string
}

// NewPlanCommand creates the "plan" cobra command, a dry run of fetch.
func NewPlanCommand() *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which source and checksum each contig would use",
		Long: `Resolve every contig of the BED file against the URL catalog without
downloading anything. Duplicate catalog entries, missing sources and
unusable checksums are reported exactly as fetch would report them.

Examples:
  vcf-region-fetch plan --bed regions.bed --urls urls.csv
  vcf-region-fetch plan --bed regions.bed --urls urls.yaml --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.bed, "bed", "", "Region list (BED)")
	cmd.Flags().StringVar(&flags.urls, "urls", "", "URL catalog (.csv or .yaml)")
	cmd.Flags().StringVar(&flags.checksumAlgo, "checksum-algo", "", "Default checksum algorithm (overrides config)")
	_ = cmd.MarkFlagRequired("bed")
	_ = cmd.MarkFlagRequired("urls")

	return cmd
}

// PlanEntry is one contig of the plan. It is also the JSON output shape.
type PlanEntry struct {
	Contig    string          `json:"contig"`
	Regions   int             `json:"regions"`
	Covered   int64           `json:"coveredBases"`
	URL       string          `json:"url,omitempty"`
	Algorithm string          `json:"algorithm,omitempty"`
	Error     model.ErrorKind `json:"error,omitempty"`
	Detail    string          `json:"detail,omitempty"`
}

// PlanResult is the output of the plan command.
type PlanResult struct {
	Contigs  []PlanEntry `json:"contigs"`
	Warnings []string    `json:"warnings,omitempty"`
}

func runPlan(cmd *cobra.Command, flags *planFlags) error {
	cfg, _, err := loadConfig(cmd, func(c *config.Config) {
		if flags.checksumAlgo != "" {
			c.ChecksumAlgo = flags.checksumAlgo
		}
	})
	if err != nil {
		return err
	}
	fallback, err := checksum.Lookup(cfg.ChecksumAlgo)
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidInput, "invalid configuration", err)
	}

	idx, cat, err := loadInputs(flags.bed, flags.urls)
	if err != nil {
		return err
	}

	result := BuildPlan(idx, cat, fallback)
	if err := printPlan(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	failed := 0
	for _, e := range result.Contigs {
		if e.Error != model.KindNone {
			failed++
		}
	}
	if failed > 0 {
		return model.NewCLIError(model.ExitPartialFailure,
			fmt.Sprintf("%d of %d contigs cannot be fetched", failed, len(result.Contigs)))
	}
	return nil
}

// BuildPlan resolves every contig of idx the way the fetch pipeline would
// in its resolving state.
func BuildPlan(idx *interval.Index, cat *catalog.Catalog, fallback checksum.Algorithm) PlanResult {
	result := PlanResult{Contigs: make([]PlanEntry, 0, idx.Len())}
	for _, w := range cat.Warnings() {
		result.Warnings = append(result.Warnings, w.String())
	}

	for _, contig := range idx.Contigs() {
		e := PlanEntry{
			Contig:  contig,
			Regions: len(idx.Regions(contig)),
			Covered: idx.Covered(contig),
		}
		src, err := cat.Lookup(contig)
		if err != nil {
			e.Error, e.Detail = model.KindOf(err), err.Error()
			result.Contigs = append(result.Contigs, e)
			continue
		}
		e.URL = src.URL

		exp, err := checksum.ParseExpected(src.ExpectedChecksum, src.Algorithm, fallback)
		if err != nil {
			e.Error, e.Detail = model.KindMissingSource, err.Error()
		} else {
			e.Algorithm = string(exp.Algorithm)
		}
		result.Contigs = append(result.Contigs, e)
	}
	return result
}

func printPlan(w io.Writer, result PlanResult) error {
	if IsJSONOutput() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	for _, warning := range result.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warning)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CONTIG\tREGIONS\tCOVERED\tALGORITHM\tSOURCE")
	for _, e := range result.Contigs {
		source := e.URL
		if e.Error != model.KindNone {
			source = e.Error.String() + ": " + e.Detail
		}
		alg := e.Algorithm
		if alg == "" {
			alg = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", e.Contig, e.Regions, e.Covered, alg, source)
	}
	return tw.Flush()
}
