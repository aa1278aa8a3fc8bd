package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer folds bursts of events per path into one and emits them as a
// batch once no new event arrived for the window. A slow consumer delays
// batches but never loses them.
//
// Folding rules, earlier op first:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE or RENAME becomes DELETE
//   - DELETE or RENAME then CREATE becomes MODIFY for files; a directory
//     stays removed
//   - otherwise the later op wins
type Debouncer struct {
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer
	stopped bool

	// sendMu keeps batches in flush order.
	sendMu  sync.Mutex
	sending sync.WaitGroup
	done    chan struct{}
	out     chan []Event
}

// NewDebouncer returns a Debouncer with the given quiet window.
func NewDebouncer(window time.Duration, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		logger:  logger,
		pending: make(map[string]Event),
		done:    make(chan struct{}),
		out:     make(chan []Event, 16),
	}
}

// fold combines the pending event for a path with a new one.
func fold(prev, next Event) Event {
	switch {
	case prev.Op == OpCreate && next.Op == OpModify:
		next.Op = OpCreate
	case prev.Op == OpCreate && next.Op.removes():
		next.Op = OpDelete
	case prev.Op.removes() && next.Op == OpCreate:
		if prev.IsDir {
			return prev
		}
		next.Op = OpModify
	}
	if prev.IsDir && next.Op.removes() {
		next.IsDir = true
	}
	return next
}

// Add queues an event and restarts the quiet window.
func (d *Debouncer) Add(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[e.Path]; ok {
		e = fold(prev, e)
	}
	d.pending[e.Path] = e

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, e)
	}
	d.pending = make(map[string]Event)
	d.sending.Add(1)
	d.mu.Unlock()
	defer d.sending.Done()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case d.out <- batch:
		return
	default:
	}

	d.logger.Debug("watch consumer is behind, holding batch",
		slog.Int("batch_size", len(batch)))
	select {
	case d.out <- batch:
	case <-d.done:
	}
}

// Output yields debounced batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []Event {
	return d.out
}

// Stop discards pending events, waits for an in-flight send to give up and
// closes Output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.done)
	d.mu.Unlock()

	d.sending.Wait()
	close(d.out)
}
