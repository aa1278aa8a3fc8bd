package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcluded(t *testing.T) {
	patterns := []string{".git", "node_modules", "*.log", "build/**"}

	assert.True(t, Excluded(".git/HEAD", patterns))
	assert.True(t, Excluded("web/node_modules/react/index.js", patterns))
	assert.True(t, Excluded("logs/server.log", patterns))
	assert.True(t, Excluded("build/out/app", patterns))
	assert.False(t, Excluded("src/main.go", patterns))
	assert.False(t, Excluded("", patterns))
	assert.False(t, Excluded("gitlab/ci.go", patterns))
}

// collect drains batches until a stale event for want arrives.
func collect(t *testing.T, w *Watcher, want string) []Event {
	t.Helper()
	var seen []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-w.Batches():
			require.True(t, ok, "batches closed early")
			seen = append(seen, batch...)
			for _, e := range batch {
				if e.Path == want {
					return seen
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s, saw %v", want, seen)
			return nil
		}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	file := filepath.Join(root, "src", "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	w, err := New(root, Options{Debounce: 30 * time.Millisecond, Exclude: []string{"node_modules"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give Run time to register the tree.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(file, []byte("package main\n\nfunc main() {}\n"), 0o644))

	events := collect(t, w, "src/main.go")
	for _, e := range events {
		assert.NotContains(t, e.Path, "node_modules")
	}

	require.NoError(t, os.Remove(file))
	events = collect(t, w, "src/main.go")
	var last Event
	for _, e := range events {
		if e.Path == "src/main.go" {
			last = e
		}
	}
	assert.Equal(t, OpDelete, last.Op)
	assert.True(t, last.Stale())
}

// startWatcher runs a watcher on root until the test ends and waits for the
// initial tree registration.
func startWatcher(t *testing.T, root string, opts Options) *Watcher {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 30 * time.Millisecond
	}
	w, err := New(root, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)
	return w
}

// lastEvent returns the final event for path in events.
func lastEvent(events []Event, path string) Event {
	var last Event
	for _, e := range events {
		if e.Path == path {
			last = e
		}
	}
	return last
}

func TestWatcher_AtomicSaveIsStale(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	target := filepath.Join(root, "src", "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0o644))

	w := startWatcher(t, root, Options{})

	tmp := filepath.Join(root, "src", ".main.go.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.Rename(tmp, target))

	events := collect(t, w, "src/main.go")
	last := lastEvent(events, "src/main.go")
	assert.Equal(t, OpCreate, last.Op)
	assert.True(t, last.Stale())

	assert.Contains(t, StalePaths(events), "src/main.go")
}

func TestWatcher_DirectoryMovedAway(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "sub", "z.go"), []byte("package sub\n"), 0o644))

	w := startWatcher(t, root, Options{})

	moved := filepath.Join(t.TempDir(), "pkg")
	require.NoError(t, os.Rename(filepath.Join(root, "pkg"), moved))

	events := collect(t, w, "pkg")
	last := lastEvent(events, "pkg")
	assert.True(t, last.IsDir)
	assert.True(t, last.Gone())
	assert.Equal(t, []string{"pkg"}, StaleDirs([]Event{last}))

	// Writes in the old tree must not come back under the old name.
	require.NoError(t, os.WriteFile(filepath.Join(moved, "sub", "new.go"), []byte("package sub\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker.go"), []byte("package root\n"), 0o644))

	events = collect(t, w, "marker.go")
	for _, e := range events {
		assert.NotContains(t, e.Path, "pkg/")
	}
}

func TestWatcher_DirectoryRemoved(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tmp", "a.go"), []byte("package tmp\n"), 0o644))

	w := startWatcher(t, root, Options{})

	require.NoError(t, os.RemoveAll(filepath.Join(root, "tmp")))

	events := collect(t, w, "tmp")
	last := lastEvent(events, "tmp")
	assert.True(t, last.Gone())
}

func TestWatcher_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated/\n*.tmp\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "generated"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	w := startWatcher(t, root, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "generated", "api.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main\n"), 0o644))

	events := collect(t, w, "src/main.go")
	for _, e := range events {
		assert.NotContains(t, e.Path, "generated")
		assert.NotContains(t, e.Path, ".tmp")
	}

	// Edits to .gitignore take effect without a restart.
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated/\n*.tmp\n*.log\n"), 0o644))
	collect(t, w, ".gitignore")

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "debug.log"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "util.go"), []byte("package main\n"), 0o644))

	events = collect(t, w, "src/util.go")
	for _, e := range events {
		assert.NotEqual(t, "src/debug.log", e.Path)
	}
}

func TestWatcher_SkipGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.gen.go\n"), 0o644))

	w := startWatcher(t, root, Options{SkipGitignore: true})

	require.NoError(t, os.WriteFile(filepath.Join(root, "api.gen.go"), []byte("package x\n"), 0o644))
	events := collect(t, w, "api.gen.go")
	assert.True(t, lastEvent(events, "api.gen.go").Stale())
}

func TestWatcher_RunClosesBatches(t *testing.T) {
	w, err := New(t.TempDir(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	_, ok := <-w.Batches()
	assert.False(t, ok)
}
