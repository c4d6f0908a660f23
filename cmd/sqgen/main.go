// Package main provides the sqgen command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/sqgen/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
