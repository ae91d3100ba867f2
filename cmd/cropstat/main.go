// Package main provides the CLI entry point for cropstat.
package main

import (
	"os"

	"github.com/leapstack-labs/cropstat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
