package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/denis567denis/valkey-search/internal/output"
	"github.com/denis567denis/valkey-search/internal/store"
)

func newDeleteCmd(a *app) *cobra.Command {
	var dirs bool

	cmd := &cobra.Command{
		Use:   "delete <path>...",
		Short: "Delete the points of one or more files",
		Long: `Delete every point stored for the given files. Paths may be absolute
or relative to the workspace. With --dir, each path is a directory and
every point below it is deleted. A missing index is not an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				if !dirs {
					if err := s.DeletePointsByMultipleFilePaths(cmd.Context(), args); err != nil {
						return err
					}
					status(cmd).Successf("deleted points for %d file(s)", len(args))
					return nil
				}
				for _, dir := range args {
					if err := s.DeletePointsByDirectory(cmd.Context(), dir); err != nil {
						return fmt.Errorf("delete %s: %w", dir, err)
					}
				}
				status(cmd).Successf("deleted points below %d directory(ies)", len(args))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dirs, "dir", false, "treat paths as directories")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every point but keep the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				if err := s.ClearCollection(cmd.Context()); err != nil {
					return err
				}
				status(cmd).Successf("cleared %s", s.IndexName())
				return nil
			})
		},
	}
}

// errIndexMissing makes `exists` exit non-zero without extra output.
var errIndexMissing = errors.New("index does not exist")

func newExistsCmd(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "exists",
		Short: "Report whether the workspace index exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				ok, err := s.CollectionExists(cmd.Context())
				if err != nil {
					return err
				}
				if quiet {
					if !ok {
						cmd.SilenceErrors = true
						return errIndexMissing
					}
					return nil
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print nothing; exit status 1 when missing")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Describe the workspace index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				info, err := s.Info(cmd.Context())
				if err != nil {
					return err
				}
				if wantJSON(cmd, jsonOutput) {
					return output.JSON(cmd.OutOrStdout(), info)
				}

				w := status(cmd)
				w.Field("index", info.Name)
				w.Field("workspace", s.Workspace())
				if !info.Exists {
					w.Warningf("index has not been created; run init")
					return nil
				}
				w.Field("documents", info.NumDocs)
				w.Field("dimension", info.Dimension)
				w.Field("segments", info.SegmentDepth)
				w.Field("storage", info.StorageMode)
				w.Field("complete", info.IndexingComplete)
				if info.NumDocs == 0 {
					w.Warningf("index %s is empty", info.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDestroyCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Drop the workspace index and all its points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("destroy drops every point of this workspace; pass --yes to confirm")
			}
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				if err := s.DeleteCollection(cmd.Context()); err != nil {
					return err
				}
				status(cmd).Successf("destroyed %s", s.IndexName())
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm destruction")
	return cmd
}
