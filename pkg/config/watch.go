package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay lets editors finish writing before the file is re-read.
const reloadDelay = 100 * time.Millisecond

// WatchRouting calls fn with the re-parsed routing file each time it changes,
// until ctx is done. Parse failures are passed to fn with a nil config; the
// caller keeps its previous configuration. The parent directory is watched so
// that editors which replace the file on save are handled.
func WatchRouting(ctx context.Context, path string, fn func(*RoutingConfig, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case <-time.After(reloadDelay):
				case <-ctx.Done():
					return
				}
				drain(watcher.Events, abs)
				fn(LoadRoutingConfig(abs))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fn(nil, fmt.Errorf("routing watcher: %w", err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// drain discards queued events for path so one save triggers one reload.
func drain(events <-chan fsnotify.Event, path string) {
	for {
		select {
		case ev, ok := <-events:
			if !ok || filepath.Clean(ev.Name) != path {
				return
			}
		default:
			return
		}
	}
}
