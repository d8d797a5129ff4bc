package confloader

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before a change is
// reported.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls a function after a configuration file is written. Bursts of
// writes within the debounce window produce one call.
type Watcher struct {
	fs       *fsnotify.Watcher
	path     string
	onChange func(path string)
	debounce time.Duration
	logger   *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets the quiet period. Zero reports every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher starts watching path. The parent directory is watched so files
// replaced by rename, as most editors save them, are still seen.
func NewWatcher(path string, onChange func(path string), opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:       fs,
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.wg.Add(1)
	go w.run()
	w.logger.Info("watching config file", "path", w.path, "debounce", w.debounce)
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("config file event", "path", w.path, "op", ev.Op.String())
			if w.debounce <= 0 {
				w.onChange(w.path)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.onChange(w.path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "path", w.path, "error", err)
		}
	}
}

// Close stops the watcher and waits for a running callback to return. It is
// idempotent.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fs.Close()
		w.wg.Wait()
		w.logger.Info("config watcher stopped", "path", w.path)
	})
	return w.closeErr
}
