// Package main is the entry point for the vcf-region-fetch CLI.
//
// It delegates all functionality to the internal/cli package, which
// defines the cobra commands. Build-time variables (version, commit, date)
// are injected via ldflags during the release process and default to
// "dev", "none" and "unknown" in development builds.
package main

import (
	"github.com/shinji-kodama/vcf-region-fetch/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
