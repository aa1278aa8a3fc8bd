package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter appends log lines to a file and rolls it over once it grows
// past a size limit. The active file keeps its name; older generations are
// kept as name.1 (newest) through name.N and anything older is removed.
// It is safe for concurrent use.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewRotatingWriter opens path for appending, creating parent directories.
// The file rolls over past maxSizeMB megabytes, keeping maxFiles old
// generations. maxSizeMB of 0 rolls over on every write.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) << 20,
		maxFiles: maxFiles,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends p, rolling the file over first when p would overflow it.
// A failed rollover is reported on stderr and the write goes to the
// current file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.written+int64(len(p)) > w.maxSize {
		if err := w.rollover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "valkey-search: log rotation failed: %v\n", err)
		}
		if w.file == nil {
			return 0, os.ErrClosed
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// Sync flushes the active file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the active file. Later writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.written = info.Size()
	return nil
}

// generation names the i-th old file.
func (w *RotatingWriter) generation(i int) string {
	return fmt.Sprintf("%s.%d", w.path, i)
}

// rollover shifts name.i to name.i+1, dropping the oldest, and reopens an
// empty active file. On failure the current file stays open.
func (w *RotatingWriter) rollover() error {
	if w.maxFiles <= 0 {
		if err := w.file.Truncate(0); err != nil {
			return fmt.Errorf("truncate log file: %w", err)
		}
		w.written = 0
		return nil
	}

	_ = os.Remove(w.generation(w.maxFiles))
	for i := w.maxFiles - 1; i >= 1; i-- {
		_ = os.Rename(w.generation(i), w.generation(i+1))
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	w.file = nil
	if err := os.Rename(w.path, w.generation(1)); err != nil {
		// Keep logging to the same file rather than losing output.
		if openErr := w.open(); openErr != nil {
			return openErr
		}
		return fmt.Errorf("rotate log file: %w", err)
	}
	return w.open()
}
