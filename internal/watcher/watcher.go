package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/denis567denis/valkey-search/internal/gitignore"
)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet window before a batch is emitted. Default 500ms.
	Debounce time.Duration
	// Exclude holds doublestar patterns matched against relative paths and
	// their components.
	Exclude []string
	// SkipGitignore disables .gitignore handling. By default paths ignored
	// by any .gitignore in the tree are not watched.
	SkipGitignore bool
	Logger        *slog.Logger
}

// Watcher follows a directory tree with fsnotify.
//
// Run owns dirs and ignore; nothing else touches them.
type Watcher struct {
	root    string
	exclude []string
	useGit  bool
	fs      *fsnotify.Watcher
	deb     *Debouncer
	logger  *slog.Logger

	dirs   map[string]struct{}
	ignore *gitignore.Matcher
}

// New prepares a watcher for root. Call Run to start it.
func New(root string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:    abs,
		exclude: opts.Exclude,
		useGit:  !opts.SkipGitignore,
		fs:      fsw,
		deb:     NewDebouncer(opts.Debounce, logger),
		logger:  logger,
		dirs:    make(map[string]struct{}),
		ignore:  gitignore.New(),
	}, nil
}

// Batches yields debounced events. It is closed when Run returns.
func (w *Watcher) Batches() <-chan []Event {
	return w.deb.Output()
}

// Run watches until ctx is done. It always releases the fsnotify handle and
// closes Batches before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.deb.Stop()
	defer w.fs.Close()

	w.loadIgnore()
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("watching workspace",
		slog.String("root", w.root),
		slog.Int("dirs", len(w.dirs)),
		slog.Int("gitignore_rules", w.ignore.Len()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// loadIgnore compiles every .gitignore outside excluded directories. A
// failure keeps the previous rules.
func (w *Watcher) loadIgnore() {
	if !w.useGit {
		return
	}
	m, err := gitignore.Load(w.root, func(rel string) bool {
		return Excluded(rel, w.exclude)
	})
	if err != nil {
		w.logger.Warn("failed to load gitignore files", slog.String("error", err.Error()))
		return
	}
	w.ignore = m
}

// ignored reports whether events for rel are dropped.
func (w *Watcher) ignored(rel string, isDir bool) bool {
	return Excluded(rel, w.exclude) || w.ignore.Match(rel, isDir)
}

// addTree registers dir and every directory below it that is neither
// excluded nor ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(w.rel(path), true) {
			return filepath.SkipDir
		}
		if _, ok := w.dirs[path]; ok {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

// forget drops the watches on dir and everything below it. A directory
// moved within the same file system keeps its inotify watch, which would
// otherwise report the new location under the old name.
func (w *Watcher) forget(dir string) {
	prefix := dir + string(filepath.Separator)
	for p := range w.dirs {
		if p != dir && !strings.HasPrefix(p, prefix) {
			continue
		}
		delete(w.dirs, p)
		_ = w.fs.Remove(p)
	}
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel := w.rel(ev.Name)
	if rel == "." {
		return
	}

	// A path that is gone can't be stat'ed; the watch set still knows it
	// was a directory.
	_, isDir := w.dirs[ev.Name]
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.ignored(rel, isDir) {
		return
	}

	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if isDir {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", slog.String("path", rel), slog.String("error", err.Error()))
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	if op.removes() && isDir {
		w.forget(ev.Name)
	}

	if w.useGit && !isDir && path.Base(rel) == gitignore.FileName {
		w.loadIgnore()
		// Directories a rule no longer covers need watches now.
		if err := w.addTree(w.root); err != nil {
			w.logger.Warn("failed to rescan workspace", slog.String("error", err.Error()))
		}
	}

	w.deb.Add(Event{Path: rel, Op: op, IsDir: isDir})
}
