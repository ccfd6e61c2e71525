// Package model defines the domain types and value objects for the
// vcf-region-fetch CLI.
//
// This package contains pure data structures with no external dependencies.
// Regions and source entries are built once from the input files and shared
// read-only by every contig worker; RetrievalResult values are produced by
// exactly one worker each and merged into a Summary after the run.
//
// The package also defines the error kinds a contig can fail with, the exit
// codes (ExitCode) and a custom error type (CLIError) that carries exit codes
// for proper OS process exit handling.
package model
