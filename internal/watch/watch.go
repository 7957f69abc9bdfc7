// Package watch re-runs a conversion whenever its trace file is written.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events a single save produces
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls Run for a file once at start and again after every change
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *slog.Logger
	Run      func(ctx context.Context) error
}

// Watch blocks until ctx is cancelled. Errors returned by Run are logged and
// do not stop watching.
func (w *Watcher) Watch(ctx context.Context) error {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files on save, so watch the directory
	if err := watcher.Add(filepath.Dir(w.Path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.Path, err)
	}

	w.runOnce(ctx, logger)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.Path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.runOnce(ctx, logger)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "path", w.Path, "error", err)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, logger *slog.Logger) {
	if err := w.Run(ctx); err != nil {
		logger.Error("conversion failed", "path", w.Path, "error", err)
		return
	}
	logger.Debug("conversion finished", "path", w.Path)
}
