package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces bursts of filesystem events (editors often
// emit several writes per save) into a single reload.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the registry whenever the users file changes on disk,
// until the context is cancelled.
//
// The containing directory is watched rather than the file itself:
// many editors and config-management tools replace files via
// write-to-temp-and-rename, which would orphan a watch on the old
// inode. Reload failures keep the previous snapshot and are logged.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %q: %w", dir, err)
	}

	r.logger.Info("watching users file for changes", "path", r.path)

	target := filepath.Clean(r.path)

	var debounce *time.Timer
	var reload <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
				reload = debounce.C
			} else {
				debounce.Reset(reloadDebounce)
			}

		case <-reload:
			debounce = nil
			reload = nil
			r.logger.Info("users file changed, reloading")
			if err := r.Load(); err != nil {
				r.logger.Error("reload failed, keeping previous users", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("users file watcher error", "error", err)
		}
	}
}
