package blog

import (
	"context"
	"encoding/json"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/neoground/charm-blog/internal/fsutil"
	"github.com/neoground/charm-blog/internal/kv"
)

// SnapshotKey is the cache key the serialized snapshot is stored under.
const SnapshotKey = "blog_posts"

// Source yields the post set for a snapshot rebuild.
type Source interface {
	Load() ([]Post, error)
}

// Cache wraps a Source behind a cache-or-rebuild policy. In debug mode every
// call rebuilds directly from the source so authors see unpublished and
// future-dated edits immediately. In normal mode the snapshot lives in the
// kv store, or in a JSON file when no store is configured.
type Cache struct {
	source    Source
	store     kv.Store // optional
	cacheFile string
	debug     bool
	group     singleflight.Group
	logger    *zap.Logger
}

func NewCache(source Source, store kv.Store, cacheFile string, debug bool, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source:    source,
		store:     store,
		cacheFile: cacheFile,
		debug:     debug,
		logger:    logger,
	}
}

// Snapshot returns the cached snapshot, rebuilding it on a miss. The miss
// path is serialized through singleflight so concurrent callers trigger at
// most one directory scan and one cache write; hits bypass the group
// entirely.
func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	if c.debug {
		return c.build()
	}

	if snap, ok := c.lookup(ctx); ok {
		return snap, nil
	}

	v, err, _ := c.group.Do(SnapshotKey, func() (any, error) {
		// Re-check under the flight: a caller that lost the race must
		// observe the freshly written snapshot instead of rebuilding.
		if snap, ok := c.lookup(ctx); ok {
			return snap, nil
		}
		snap, err := c.build()
		if err != nil {
			return Snapshot{}, err
		}
		c.persist(ctx, snap)
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// Invalidate removes the cached snapshot; the next Snapshot call rebuilds.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.store != nil {
		return c.store.Delete(ctx, SnapshotKey)
	}
	if err := os.Remove(c.cacheFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch invalidates the snapshot whenever a file in dir changes and then
// calls onInvalidate, if non-nil. It blocks until ctx is done.
func (c *Cache) Watch(ctx context.Context, dir string, onInvalidate func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				c.logger.Info("post change detected, invalidating snapshot",
					zap.String("file", event.Name))
				if err := c.Invalidate(ctx); err != nil {
					c.logger.Warn("failed to invalidate snapshot", zap.Error(err))
				} else if onInvalidate != nil {
					onInvalidate()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (c *Cache) build() (Snapshot, error) {
	posts, err := c.source.Load()
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(posts), nil
}

func (c *Cache) lookup(ctx context.Context) (Snapshot, bool) {
	var raw []byte
	if c.store != nil {
		value, err := c.store.Get(ctx, SnapshotKey)
		if err != nil {
			if err != kv.ErrNoKey {
				c.logger.Warn("snapshot lookup failed", zap.Error(err))
			}
			return Snapshot{}, false
		}
		raw = []byte(value)
	} else {
		data, err := os.ReadFile(c.cacheFile)
		if err != nil {
			return Snapshot{}, false
		}
		raw = data
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("discarding unreadable snapshot", zap.Error(err))
		return Snapshot{}, false
	}
	if snap.Posts == nil {
		return Snapshot{}, false
	}
	return snap, true
}

func (c *Cache) persist(ctx context.Context, snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("failed to serialize snapshot", zap.Error(err))
		return
	}
	if c.store != nil {
		if err := c.store.Set(ctx, SnapshotKey, string(data)); err != nil {
			c.logger.Warn("failed to write snapshot to store", zap.Error(err))
		}
		return
	}
	if err := fsutil.AtomicWriteFile(c.cacheFile, data, 0o644); err != nil {
		c.logger.Warn("failed to write snapshot cache file", zap.Error(err))
	}
}
