// Package watcher reports changes to files on disk. The agent uses it to
// reload a local source manifest when it is rewritten.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
)

const DefaultDebounce = 200 * time.Millisecond

var ErrStopped = errors.New("watcher stopped")

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FSWatcher watches individual files through their parent directories, so
// editors that replace a file by rename are still seen. Bursts of events for
// one file are collapsed into one callback after the debounce delay.
type FSWatcher struct {
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu       sync.Mutex
	files    map[string]bool
	pending  map[string]*time.Timer
	last     map[string]EventType
	callback func(path string, event EventType)
	stopped  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewFSWatcher(debounce time.Duration, logger *slog.Logger) (*FSWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &FSWatcher{
		logger:   logging.WithComponent(logging.OrDiscard(logger), "watcher"),
		debounce: debounce,
		watcher:  fw,
		files:    make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		last:     make(map[string]EventType),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Watch starts reporting changes to path. The file's directory must exist;
// the file itself may appear later. Watching ends when ctx is done.
func (w *FSWatcher) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	w.files[path] = true
	w.mu.Unlock()

	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add watch: %w", err)
	}
	w.logger.Info("watching file", "path", logging.SanitizePath(path))

	go func() {
		select {
		case <-ctx.Done():
			w.unwatch(path)
		case <-w.done:
		}
	}()
	return nil
}

func (w *FSWatcher) unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.files, path)
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *FSWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *FSWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *FSWatcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	var et EventType
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		et = EventDelete
	case event.Op&fsnotify.Create != 0:
		et = EventCreate
	case event.Op&fsnotify.Write != 0:
		et = EventModify
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || !w.files[path] {
		return
	}

	// a delete followed by a create inside the window is a replace
	if prev, ok := w.last[path]; ok && prev == EventDelete && et == EventCreate {
		et = EventModify
	}
	w.last[path] = et

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.fire(path)
	})
}

func (w *FSWatcher) fire(path string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	et := w.last[path]
	delete(w.last, path)
	delete(w.pending, path)
	cb := w.callback
	w.mu.Unlock()

	w.logger.Debug("file changed", "path", logging.SanitizePath(path), "event", et.String())
	if cb != nil {
		cb(path, et)
	}
}
