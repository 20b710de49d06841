package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// reloadOps are the events on the config file that trigger a reload. An
// atomic save (temp file renamed over path) arrives as Create on path.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch reloads the server config at path whenever it changes on disk and
// hands each successfully validated Config to onChange. It returns nil when
// ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that the
// watch survives saves that replace the file's inode. A reload that fails
// to parse or validate is logged and the previous config stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("server config: watch %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("server config: watch %q: %w", path, err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("server config: watch %q: %w", dir, err)
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&reloadOps == 0 {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				// A rename away from path leaves nothing to read until the
				// replacement lands; that Create triggers the next reload.
				slog.Warn("config: reload skipped, keeping previous config",
					"path", path, "op", event.Op.String(), "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", path,
				"log_level", cfg.Server.LogLevel,
				"reaper_interval", cfg.Server.Reaper.Interval)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
