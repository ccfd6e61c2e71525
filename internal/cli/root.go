// Package cli implements the cobra-based CLI commands for vcf-region-fetch.
//
// Each subcommand (fetch, plan, checksum) is defined in its own file within
// this package. This file defines the root command that serves as the
// parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vcf-region-fetch/internal/config"
	"github.com/shinji-kodama/vcf-region-fetch/internal/logging"
	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// configPath points at an optional JSONC config file.
	configPath string

	// logFormat overrides the configured log format (text or json).
	logFormat string
)

// Version, Commit and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action. It only provides
// help text and global flags; the work is done by the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vcf-region-fetch",
		Short: "Stream remote VCFs and keep only records inside regions of interest",
		Long: `vcf-region-fetch downloads one compressed VCF per contig, keeps the records
that fall inside the regions of a BED file, and verifies every download
against its published checksum.

Nothing is stored in full: each file is decompressed, filtered and
checksummed in a single streaming pass, and only the kept records are
written to disk.`,

		// We format errors ourselves (text or JSON based on --json flag).
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSONC config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.AddCommand(NewFetchCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewChecksumCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the resulting
// code. SIGINT and SIGTERM cancel the command's context.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, rootCmd, os.Stderr)
	stop()
	os.Exit(int(code))
}

// Run executes rootCmd with ctx and translates the returned error into an
// exit code, printing it to errOut. CLIError values carry their own exit
// code; other errors map to ExitGeneralError, or ExitInterrupted once ctx
// has been cancelled.
func Run(ctx context.Context, rootCmd *cobra.Command, errOut io.Writer) model.ExitCode {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return model.ExitSuccess
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(errOut, cliErr.Message, cliErr.Err)
		return cliErr.Code
	}

	printError(errOut, err.Error(), nil)
	if ctx.Err() != nil {
		return model.ExitInterrupted
	}
	return model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		_, _ = fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// loadConfig reads the config file and environment, lets apply copy in
// any explicitly set flags, validates the result and sets up logging.
func loadConfig(cmd *cobra.Command, apply func(*config.Config)) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			return config.Config{}, nil, cliErr
		}
		return config.Config{}, nil, model.WrapCLIError(model.ExitInvalidInput, "invalid configuration", err)
	}

	if apply != nil {
		apply(&cfg)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, model.WrapCLIError(model.ExitInvalidInput, "invalid configuration", err)
	}

	logger := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return cfg, logger, nil
}
