package main

import (
	"fmt"
	"os"

	"github.com/roach88/fintrack/internal/cli"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := cli.NewRootCommand()
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
