// Package watch triggers reloads when the input directory changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"aadhaar/internal/log"
)

// inputPrefix selects the files the loader reads.
const inputPrefix = "api_data_aadhar_"

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Triggers      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher debounces filesystem events on the input directory and calls
// onChange once per burst. onChange runs on the watcher goroutine, so calls
// never overlap.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	parent   string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   *log.Logger

	pending   bool
	lastEvent time.Time
	stats     Stats

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a watcher for dir. It does not start watching.
func New(dir string, debounce time.Duration, onChange func(ctx context.Context), logger *log.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: onChange is required")
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = log.Discard()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		dir:      abs,
		parent:   filepath.Dir(abs),
		debounce: debounce,
		onChange: onChange,
		logger:   logger.WithComponent(log.ComponentWatcher),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// The parent is watched so a removed and recreated input directory is
	// noticed.
	if err := w.watcher.Add(w.parent); err != nil {
		w.logger.Warn("Cannot watch parent directory", log.FieldDirectory, w.parent, log.FieldError, err.Error())
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.logger.Warn("Input directory not watchable yet", log.FieldDirectory, w.dir, log.FieldError, err.Error())
	} else {
		w.logger.Info("Watching input directory", log.FieldDirectory, w.dir, "debounce", w.debounce.String())
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("Error closing watcher", log.FieldError, err.Error())
	}
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", log.FieldError, err.Error())
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			if w.due() {
				w.logger.InfoContext(ctx, "Input changed, reloading", log.FieldDirectory, w.dir)
				w.onChange(ctx)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	name := filepath.Clean(event.Name)
	switch {
	case name == w.dir:
		if event.Op&fsnotify.Create != 0 {
			if err := w.watcher.Add(w.dir); err != nil {
				w.logger.Warn("Cannot watch recreated input directory", log.FieldError, err.Error())
			}
		}
	case filepath.Dir(name) == w.dir && isInputFile(name):
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	w.lastEvent = time.Now()
	w.stats.Events++
	w.stats.LastEventPath = name
	w.stats.LastEventTime = w.lastEvent
}

// due reports whether a burst has settled, clearing the pending flag.
func (w *Watcher) due() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending || time.Since(w.lastEvent) < w.debounce {
		return false
	}
	w.pending = false
	w.stats.Triggers++
	return true
}

func isInputFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, inputPrefix) && strings.EqualFold(filepath.Ext(base), ".csv")
}
