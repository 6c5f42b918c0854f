// Package main provides the entry point for the memsearch CLI.
package main

import (
	"os"

	"github.com/memsearch/memsearch/cmd/memsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
