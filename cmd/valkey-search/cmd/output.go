package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/denis567denis/valkey-search/internal/output"
)

// wantJSON picks JSON output when asked for, or when stdout is piped.
func wantJSON(cmd *cobra.Command, forced bool) bool {
	return forced || !output.IsTerminal(cmd.OutOrStdout())
}

// status returns a status line writer on the command's stdout.
func status(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout())
}

// openInput opens path for reading; "" and "-" mean the command's stdin.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}
