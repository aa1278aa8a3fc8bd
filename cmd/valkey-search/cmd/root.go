// Package cmd provides the CLI commands for valkey-search.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/denis567denis/valkey-search/internal/config"
	"github.com/denis567denis/valkey-search/internal/logging"
	"github.com/denis567denis/valkey-search/internal/profiling"
	"github.com/denis567denis/valkey-search/internal/store"
	"github.com/denis567denis/valkey-search/pkg/version"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	workspace   string
	configPath  string
	logLevel    string
	logFile     string
	metricsAddr string
	cpuProfile  string
	memProfile  string

	cfg            *config.Config
	logger         *slog.Logger
	loggingCleanup func()
	stopProfiling  func() error
}

// NewRootCmd creates the root command for the valkey-search CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "valkey-search",
		Short: "Vector index for code chunks on Redis Stack or Valkey",
		Long: `valkey-search keeps a per-workspace vector index in a Redis-compatible
search engine (Redis Stack, Valkey with valkey-search). It stores embedding
vectors with file path metadata, answers nearest-neighbour queries scoped to
a directory, and drops stale entries when files change.

Embeddings are produced elsewhere; this tool only stores and queries them.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}
	cmd.SetVersionTemplate("valkey-search version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&a.workspace, "workspace", "w", ".", "Workspace root the index belongs to")
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: user and .valkey-search.yaml layering)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write logs to this file, rotated")
	cmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (watch only)")
	cmd.PersistentFlags().StringVar(&a.cpuProfile, "profile-cpu", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&a.memProfile, "profile-mem", "", "Write a heap profile to this file on exit")

	cmd.AddCommand(newInitCmd(a))
	cmd.AddCommand(newUpsertCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newClearCmd(a))
	cmd.AddCommand(newExistsCmd(a))
	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newDestroyCmd(a))
	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PersistentPostRun is skipped when a command fails.
	a := &app{}
	defer a.teardown()
	return newRootCmd(a).ExecuteContext(ctx)
}

// setup resolves the workspace, loads configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	ws, err := filepath.Abs(a.workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	a.workspace = ws

	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load(ws)
	}
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
	}
	if a.logFile != "" {
		a.cfg.Logging.FilePath = a.logFile
	}
	if a.metricsAddr != "" {
		a.cfg.Metrics.Addr = a.metricsAddr
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:     a.cfg.Logging.Level,
		FilePath:  a.cfg.Logging.FilePath,
		MaxSizeMB: a.cfg.Logging.MaxSizeMB,
		MaxFiles:  a.cfg.Logging.MaxFiles,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logger = logger
	a.loggingCleanup = cleanup
	slog.SetDefault(logger)

	if a.cpuProfile != "" || a.memProfile != "" {
		stop, err := profiling.Start(profiling.Options{CPUPath: a.cpuProfile, HeapPath: a.memProfile})
		if err != nil {
			return err
		}
		a.stopProfiling = stop
	}
	return nil
}

func (a *app) teardown() {
	if a.stopProfiling != nil {
		if err := a.stopProfiling(); err != nil {
			a.logger.Warn("profiling failed", slog.String("error", err.Error()))
		}
		a.stopProfiling = nil
	}
	if a.loggingCleanup != nil {
		a.loggingCleanup()
		a.loggingCleanup = nil
	}
}

// openStore connects to the engine for the current workspace.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, a.workspace, a.cfg, store.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", a.cfg.Redis.Addr, err)
	}
	return s, nil
}

// withStore opens a store, runs fn and closes the store.
func (a *app) withStore(ctx context.Context, fn func(*store.Store) error) error {
	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.logger.Debug("close failed", slog.String("error", err.Error()))
		}
	}()
	return fn(s)
}
