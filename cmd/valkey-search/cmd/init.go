package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/denis567denis/valkey-search/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace index",
		Long: `Create the vector index for the workspace if it does not exist.

An existing index whose vector dimension differs from the configured
vector size is dropped together with its documents and created again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if writeConfig {
				if err := writeProjectConfig(cmd, a); err != nil {
					return err
				}
			}

			return a.withStore(cmd.Context(), func(s *store.Store) error {
				created, err := s.Initialize(cmd.Context())
				if err != nil {
					return err
				}
				state := "exists"
				if created {
					state = "created"
				}
				status(cmd).Successf("index %s %s (dimension %d, %s)",
					s.IndexName(), state, a.cfg.Index.VectorSize, a.cfg.Index.StorageMode)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "Write the effective config to .valkey-search.yaml if none exists")
	return cmd
}

func writeProjectConfig(cmd *cobra.Command, a *app) error {
	path := filepath.Join(a.workspace, ".valkey-search.yaml")
	if _, err := os.Stat(path); err == nil {
		status(cmd).Warningf("%s already exists, leaving it untouched", path)
		return nil
	}
	if err := a.cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	status(cmd).Successf("wrote %s", path)
	return nil
}
