// Package main is the entry point for the chaincache CLI.
package main

import (
	"os"

	"github.com/mrz1836/chaincache/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
