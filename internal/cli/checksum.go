package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vcf-region-fetch/internal/checksum"
	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// checksumFlags holds the flag values for the checksum command.
type checksumFlags struct {
	algo   string
	expect string
}

// NewChecksumCommand creates the "checksum" cobra command. It runs the same
// validator fetch uses, over local files.
func NewChecksumCommand() *cobra.Command {
	flags := &checksumFlags{}

	cmd := &cobra.Command{
		Use:   "checksum FILE...",
		Short: "Compute file digests with the fetch validator",
		Long: `Compute the digest of local files, for example a downloaded VCF or an
output kept as .unverified. With --expect the single FILE must match the
given value, which may carry an algorithm prefix such as "sha256:".

Examples:
  vcf-region-fetch checksum chr1.vcf.bgz
  vcf-region-fetch checksum --algo sha256 chr1.vcf.bgz chr2.vcf.bgz
  vcf-region-fetch checksum --expect 3b5d5c3712955042212316173ccf37be chr1.vcf.bgz`,

		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecksum(cmd.OutOrStdout(), flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.algo, "algo", string(checksum.Default), "Digest algorithm: md5, sha1, sha256, sha512, xxh64")
	cmd.Flags().StringVar(&flags.expect, "expect", "", "Expected digest for a single FILE")

	return cmd
}

type fileDigest struct {
	Path      string `json:"path"`
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
	Match     *bool  `json:"match,omitempty"`
}

func runChecksum(w io.Writer, flags *checksumFlags, paths []string) error {
	alg, err := checksum.Lookup(flags.algo)
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidInput, "invalid algorithm", err)
	}

	var expected *checksum.Expected
	if flags.expect != "" {
		if len(paths) != 1 {
			return model.NewCLIError(model.ExitInvalidInput, "--expect takes exactly one FILE")
		}
		exp, err := checksum.ParseExpected(flags.expect, "", alg)
		if err != nil {
			return model.WrapCLIError(model.ExitInvalidInput, "invalid expected digest", err)
		}
		expected, alg = &exp, exp.Algorithm
	}

	digests := make([]fileDigest, 0, len(paths))
	for _, path := range paths {
		sum, err := checksum.File(alg, path)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("failed to read %s", path), err)
		}
		d := fileDigest{Path: path, Algorithm: string(alg), Digest: sum}
		if expected != nil {
			ok := expected.Matches(sum)
			d.Match = &ok
		}
		digests = append(digests, d)
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(digests, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, string(data))
	} else {
		// md5sum-compatible layout.
		for _, d := range digests {
			_, _ = fmt.Fprintf(w, "%s  %s\n", d.Digest, d.Path)
		}
	}

	if expected != nil && !*digests[0].Match {
		return model.WrapCLIError(model.ExitGeneralError, "checksum mismatch",
			fmt.Errorf("%w: %s has %s %s, expected %s",
				model.ErrChecksumMismatch, paths[0], alg, digests[0].Digest, expected.Hex))
	}
	return nil
}
