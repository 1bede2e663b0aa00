package stream

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last write before a change is reported
const DefaultDebounce = 250 * time.Millisecond

// ChangeNotifier interface for watching a log file for new content
type ChangeNotifier interface {
	Start(ctx context.Context, path string) (<-chan struct{}, error)
	Stop() error
}

// Watcher reports when a log file has been written to or recreated.
// It watches the parent directory so that rotation (rename then create)
// keeps being observed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	debounce time.Duration
	mu       sync.Mutex
	path     string
}

// NewWatcher creates a new file watcher
func NewWatcher(debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		changes:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		debounce: debounce,
	}
}

// Start begins watching the specified file. The returned channel receives a
// value after each burst of changes and is closed when watching stops.
func (w *Watcher) Start(ctx context.Context, path string) (<-chan struct{}, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	w.mu.Lock()
	w.path = absPath
	w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch file: %w", err)
	}
	w.watcher = watcher

	log.Printf("Started watching file: %s", absPath)

	go w.watchLoop(ctx)

	return w.changes, nil
}

// watchLoop is the main loop that coalesces file events into change notifications
func (w *Watcher) watchLoop(ctx context.Context) {
	defer func() {
		w.watcher.Close()
		close(w.changes)
		log.Printf("Watcher loop stopped")
	}()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Context cancelled, stopping watcher")
			return

		case <-w.stopCh:
			log.Printf("Stop signal received")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)

		case <-fire:
			fire = nil
			w.notify()
		}
	}
}

// relevant reports whether an event means the watched file has new content
func (w *Watcher) relevant(event fsnotify.Event) bool {
	w.mu.Lock()
	path := w.path
	w.mu.Unlock()

	if filepath.Clean(event.Name) != path {
		return false
	}

	switch {
	case event.Has(fsnotify.Write):
		return true
	case event.Has(fsnotify.Create):
		log.Printf("File created: %s", event.Name)
		return true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		log.Printf("File rotated away: %s", event.Name)
	}
	return false
}

// notify sends a change without blocking; pending changes are coalesced
func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Stop stops the file watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		log.Printf("Stopping watcher")
		close(w.stopCh)
	})
	return nil
}
