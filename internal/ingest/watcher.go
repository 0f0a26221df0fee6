// Package ingest watches an inbox directory for newly dropped scans. It is
// the image-acquisition collaborator for headless runs: each emitted path is
// a new intake photo for the pipeline.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Allowed extensions for acquisition (lowercase, without '.').
var defaultExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
}

type WatchConfig struct {
	Dir         string // inbox directory to watch
	AllowedExts map[string]struct{}
	Debounce    time.Duration // coalesce write bursts while a scan is still copying
}

// StartWatcher emits one path per settled image file dropped into the inbox.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, nil, errors.New("no inbox directory provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = defaultExts
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watcher_create_failed", "error", err)
		return nil, nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		logger.Error("ingest.watch_dir_failed", "dir", cfg.Dir, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watcher_close_failed", "error", err)
			}
		}()

		// The timer starts drained; it only fires after a quiet period
		// following the last event for a pending file.
		timer := time.NewTimer(cfg.Debounce)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		pending := map[string]struct{}{}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-w.Events:
				if !allowed(e.Name, cfg.AllowedExts) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				pending[e.Name] = struct{}{}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(cfg.Debounce)
			case <-timer.C:
				for p := range pending {
					select {
					case evCh <- p:
					default:
					}
					delete(pending, p)
				}
			case err := <-w.Errors:
				logger.Error("ingest.watcher_error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	logger.Info("ingest.watching", "dir", cfg.Dir)
	return evCh, errCh, nil
}

func allowed(path string, exts map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}
