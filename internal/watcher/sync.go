package watcher

import (
	"context"
	"log/slog"
)

// PointDeleter removes the points stored for files and directories.
type PointDeleter interface {
	DeletePointsByMultipleFilePaths(ctx context.Context, filePaths []string) error
	DeletePointsByDirectory(ctx context.Context, dir string) error
}

// Sync deletes the points of stale files and vanished directories for every
// batch until batches is closed or ctx is done. A failed deletion is logged
// and skipped; the next change to the same path retries it.
func Sync(ctx context.Context, batches <-chan []Event, store PointDeleter, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			syncBatch(ctx, batch, store, logger)
		}
	}
}

func syncBatch(ctx context.Context, batch []Event, store PointDeleter, logger *slog.Logger) {
	if paths := StalePaths(batch); len(paths) > 0 {
		if err := store.DeletePointsByMultipleFilePaths(ctx, paths); err != nil {
			logger.Error("failed to drop points for changed files",
				slog.Int("files", len(paths)),
				slog.String("error", err.Error()))
		} else {
			logger.Info("dropped points for changed files", slog.Int("files", len(paths)))
		}
	}

	for _, dir := range StaleDirs(batch) {
		if err := store.DeletePointsByDirectory(ctx, dir); err != nil {
			logger.Error("failed to drop points for removed directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			continue
		}
		logger.Info("dropped points for removed directory", slog.String("dir", dir))
	}
}

// StalePaths returns the files in batch whose points must go.
func StalePaths(batch []Event) []string {
	var paths []string
	for _, e := range batch {
		if e.Stale() {
			paths = append(paths, e.Path)
		}
	}
	return paths
}

// StaleDirs returns the directories in batch that were removed or moved
// away, so every point below them must go.
func StaleDirs(batch []Event) []string {
	var dirs []string
	for _, e := range batch {
		if e.Gone() {
			dirs = append(dirs, e.Path)
		}
	}
	return dirs
}
