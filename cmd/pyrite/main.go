// Package main is the entry point for the pyrite CLI tool.
package main

import (
	"os"

	"github.com/pyritedb/pyrite/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
