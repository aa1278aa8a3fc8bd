// Package main provides the entry point for the valkey-search CLI.
package main

import (
	"os"

	"github.com/denis567denis/valkey-search/cmd/valkey-search/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
