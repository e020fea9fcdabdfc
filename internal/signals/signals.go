// Package signals lets another process stop a running batch by dropping a
// file into the project's signals directory.
package signals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// StopFile is the name of the file that requests a stop.
const StopFile = "stop"

// ErrStopRequested is the cancellation cause set by WatchContext.
var ErrStopRequested = errors.New("stop requested via signal file")

// PollInterval is how often the stop file is checked when file events are
// unavailable.
var PollInterval = 500 * time.Millisecond

var newFSWatcher = fsnotify.NewWatcher

// Dir returns the signals directory under a project root.
func Dir(root string) string {
	return filepath.Join(root, ".flowpilot", "signals")
}

// Watcher watches a signals directory for a stop file.
type Watcher struct {
	dir    string
	logger *charmlog.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
	closed  sync.Once
}

// New creates the signals directory, clears a stop file left by an earlier
// run and starts watching. When the platform watcher is unavailable the
// stop file is polled every PollInterval instead.
func New(dir string, logger *charmlog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals dir: %w", err)
	}
	if err := os.Remove(filepath.Join(dir, StopFile)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("clear stale stop signal: %w", err)
	}

	w := &Watcher{
		dir:    dir,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	watcher, err := newFSWatcher()
	if err != nil {
		logger.Warn("signal watcher unavailable, polling", "err", err)
		go w.poll(PollInterval)
		return w, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		logger.Warn("signal watcher unavailable, polling", "dir", dir, "err", err)
		go w.poll(PollInterval)
		return w, nil
	}
	w.watcher = watcher

	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == StopFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("signal watcher error", "err", err)
		}
	}
}

func (w *Watcher) poll(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.ShouldStop()
		}
	}
}

func (w *Watcher) trigger() {
	w.once.Do(func() {
		w.logger.Info("stop signal received", "dir", w.dir)
		close(w.stop)
	})
}

// Stopped is closed once a stop has been requested.
func (w *Watcher) Stopped() <-chan struct{} {
	return w.stop
}

// ShouldStop reports whether a stop has been requested. It also checks the
// file directly in case the watcher missed the event.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.dir, StopFile)); err == nil {
		w.trigger()
	}
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// SendStop writes the stop file.
func (w *Watcher) SendStop() error {
	return os.WriteFile(filepath.Join(w.dir, StopFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// WatchContext returns a context cancelled with ErrStopRequested when a stop
// is requested.
func (w *Watcher) WatchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-w.stop:
			cancel(ErrStopRequested)
		case <-ctx.Done():
		case <-w.done:
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops watching. The stop file, if any, is left in place.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		close(w.done)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}
