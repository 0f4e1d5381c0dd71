package tax

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/logging"
)

// Watch reloads the table whenever the file at path is written or replaced.
// It watches the parent directory so editors that save by rename are
// picked up. The watcher runs until ctx is cancelled.
func (t *Table) Watch(ctx context.Context, path string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving tax table path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating tax table watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.Reload(abs); err != nil {
					logger.Warn(ctx, "tax table reload failed, keeping current rates",
						zap.String("path", abs), zap.Error(err))
					continue
				}
				logger.Info(ctx, "tax table reloaded",
					zap.String("path", abs), zap.Int("states", len(t.States())))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn(ctx, "tax table watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
