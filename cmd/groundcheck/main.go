// Package main provides the entry point for the groundcheck CLI.
package main

import (
	"os"

	"github.com/groundcheck-ai/groundcheck/cmd/groundcheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
