package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/denis567denis/valkey-search/internal/metrics"
	"github.com/denis567denis/valkey-search/internal/store"
	"github.com/denis567denis/valkey-search/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Drop points of files as they change",
		Long: `Watch the workspace and delete the points of every file that is
written, deleted or renamed, and of every directory that is removed or
moved away, so searches never return stale chunks. Paths matched by
watch.exclude or by a .gitignore are skipped unless watch.skip_gitignore
is set. Re-embedding changed files is up to the indexer.

With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				return runWatch(cmd.Context(), a, s)
			})
		},
	}
}

func runWatch(ctx context.Context, a *app, s *store.Store) error {
	w, err := watcher.New(a.workspace, watcher.Options{
		Debounce:      a.cfg.Watch.Debounce,
		Exclude:       a.cfg.Watch.Exclude,
		SkipGitignore: a.cfg.Watch.SkipGitignore,
		Logger:        a.logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		// Batches closes when Run stops; take the metrics server down with it.
		defer cancel()
		return watcher.Sync(gctx, w.Batches(), s, a.logger)
	})

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := metricsServer(addr)
		g.Go(func() error {
			a.logger.Info("serving metrics", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
