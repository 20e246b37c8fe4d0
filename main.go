// Package main is the entry point for the redditor CLI.
package main

import (
	"fmt"
	"os"

	"github.com/agenticcompany/redditor/cmd"
	"github.com/agenticcompany/redditor/internal/metrics"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	metrics.BuildInfo.WithLabelValues(version).Set(1)

	versionString := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	cmd.SetVersion(versionString)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
