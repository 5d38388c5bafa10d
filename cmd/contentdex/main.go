// Package main is the entry point for the contentdex CLI.
package main

import (
	"os"

	"github.com/contentdex/contentdex/cmd/contentdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
