package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/getjsond/jsond/pkg/logging"
)

// DefaultWatchInterval is the default polling interval for watch mode.
const DefaultWatchInterval = 1 * time.Second

// Watcher polls the backing file for external changes and reloads the
// store when one is detected. A reload that fails to parse is logged and
// the previous in-memory state is kept.
type Watcher struct {
	store    *Store
	interval time.Duration
	log      *slog.Logger
	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// WatcherOption is a functional option for configuring a Watcher.
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithWatchLogger sets the operational logger for the watcher.
func WithWatchLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWatcher creates a Watcher for the given store.
func NewWatcher(store *Store, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:    store,
		interval: DefaultWatchInterval,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins polling for file changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	// Pass channels to avoid a race on struct fields.
	stopCh := w.stopCh
	doneCh := w.doneCh
	go w.watchLoop(stopCh, doneCh)
}

// Stop stops the watcher and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}

	close(w.stopCh)
	w.running = false
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
}

// watchLoop is the main poll loop.
func (w *Watcher) watchLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll checks the backing file once and reloads on change.
func (w *Watcher) poll() {
	changed, err := w.store.Changed()
	if err != nil {
		w.log.Warn("watch: cannot stat data file", "path", w.store.Path(), "error", err)
		return
	}
	if !changed {
		return
	}

	if err := w.store.Reload(); err != nil {
		w.log.Warn("watch: reload failed, keeping previous state", "path", w.store.Path(), "error", err)
		return
	}
	w.log.Info("watch: data file reloaded", "path", w.store.Path())
}
