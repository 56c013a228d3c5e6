package chunker

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/itsmostafa/hierchunk/internal/index"
)

// RebuildFunc receives every index Watch builds, or the error that
// prevented it.
type RebuildFunc func(source string, idx *index.Index, err error)

// Watch indexes paths and keeps their indexes fresh, rebuilding a file
// once its events have been quiet for the configured debounce window.
// Parent directories are watched so editors that replace files on save
// are still seen. Watch blocks until ctx is cancelled and then returns
// nil.
func (c *Chunker) Watch(ctx context.Context, paths []string, onRebuild RebuildFunc) error {
	if onRebuild == nil {
		onRebuild = func(string, *index.Index, error) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return err
			}
			dirs[dir] = true
			c.logger.Debug("watching directory", zap.String("dir", dir))
		}
	}

	for p := range targets {
		idx, err := c.BuildIndex(ctx, p)
		onRebuild(p, idx, err)
	}

	pending := make(map[string]time.Time)
	tick := min(c.debounce/2, 100*time.Millisecond)
	ticker := time.NewTicker(max(tick, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[event.Name] {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			c.logger.Debug("watch event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watch error", zap.Error(err))

		case now := <-ticker.C:
			for p, at := range pending {
				if now.Sub(at) < c.debounce {
					continue
				}
				delete(pending, p)
				c.rebuild(ctx, p, onRebuild)
			}
		}
	}
}

func (c *Chunker) rebuild(ctx context.Context, source string, onRebuild RebuildFunc) {
	if _, err := os.Stat(source); errors.Is(err, fs.ErrNotExist) {
		// Removed for good; a later Create event brings it back.
		if err := c.store.Remove(source); err != nil {
			c.logger.Warn("remove index", zap.String("path", source), zap.Error(err))
		}
		c.logger.Info("source removed", zap.String("path", source))
		return
	}
	idx, err := c.Rebuild(ctx, source)
	if err != nil {
		c.logger.Warn("rebuild failed", zap.String("path", source), zap.Error(err))
	} else {
		c.logger.Info("rebuilt", zap.String("path", source), zap.Int("nodes", idx.Len()))
	}
	onRebuild(source, idx, err)
}
