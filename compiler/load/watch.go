package load

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/liberaldart/epicsearch-sub000/graph"
)

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report watcher errors.
func WithLogger(l *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		c.logger = l
	}
}

// Watch compiles the declaration at path, hands the result to fn, and then
// recompiles and calls fn again each time the file is written or created.
// A failed compilation is passed to fn with a nil registry; callers keep
// their previous registry. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*graph.Registry, error), opts ...WatchOption) error {
	cfg := &watchConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch declaration: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch declaration: %w", err)
	}
	defer w.Close()
	// Editors often replace the file, so the directory is watched.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch declaration: %w", err)
	}
	fn(Compile(path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg.logger.Debug("declaration changed", slog.String("path", path), slog.String("op", ev.Op.String()))
			fn(Compile(path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Warn("declaration watcher error", slog.Any("error", err))
		}
	}
}
