// Package cache provides a local-disk read cache for figure documents.
package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/storage"
)

// Metrics holds cache counters for the stats endpoint.
type Metrics struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Evictions atomic.Int64
	Expired   atomic.Int64
	Entries   atomic.Int64
	SizeBytes atomic.Int64
}

// Snapshot is a point-in-time view of the cache counters.
type Snapshot struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Expired   int64   `json:"expired"`
	Entries   int64   `json:"entries"`
	SizeBytes int64   `json:"size_bytes"`
	HitRate   float64 `json:"hit_rate"`
}

// FigureCache is a size-bounded LRU cache with TTL expiry for figure JSON
// reads. Figures are immutable once rendered, so entries only go stale when
// a chart or session is deleted; the event bus drives that invalidation.
type FigureCache struct {
	dir      string
	maxBytes int64
	ttl      time.Duration
	metrics  Metrics
	index    sync.Map // object path → *entry
	evictCh  chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

type entry struct {
	localPath  string
	size       int64
	storedAt   int64        // Unix nanos
	lastAccess atomic.Int64 // Unix nanos
}

// NewFigureCache creates a figure cache rooted at dir. A ttl of 0 disables
// time-based expiry, leaving eviction purely to the size bound.
func NewFigureCache(dir string, maxBytes int64, ttl time.Duration) (*FigureCache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("cache: maxBytes must be positive, got %d", maxBytes)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: failed to create cache dir: %w", err)
	}

	c := &FigureCache{
		dir:      dir,
		maxBytes: maxBytes,
		ttl:      ttl,
		evictCh:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}

	// Cached filenames are path hashes, so leftovers from a previous run
	// cannot be re-indexed. The cache is disposable; start cold.
	c.clearLeftoverFiles()

	c.wg.Add(1)
	go c.evictionWorker()

	return c, nil
}

// Close shuts down the cache and waits for the eviction worker.
func (c *FigureCache) Close() {
	close(c.stopCh)
	c.wg.Wait()
}

// Get returns the cached figure document at path, if present and fresh.
func (c *FigureCache) Get(path string) ([]byte, bool) {
	value, ok := c.index.Load(path)
	if !ok {
		c.metrics.Misses.Add(1)
		return nil, false
	}
	ent := value.(*entry)

	if c.ttl > 0 && time.Now().UnixNano()-ent.storedAt > int64(c.ttl) {
		c.metrics.Expired.Add(1)
		c.removeEntry(path)
		c.metrics.Misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(ent.localPath)
	if err != nil {
		// The file vanished under us; drop the index entry.
		c.removeEntry(path)
		c.metrics.Misses.Add(1)
		return nil, false
	}

	ent.lastAccess.Store(time.Now().UnixNano())
	c.metrics.Hits.Add(1)
	return data, true
}

// Put stores a figure document under path, replacing any previous entry.
func (c *FigureCache) Put(path string, data []byte) error {
	localPath := filepath.Join(c.dir, cacheFileName(path))

	tmp := localPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("cache: failed to write entry: %w", err)
	}
	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: failed to publish entry: %w", err)
	}

	if old, ok := c.index.Load(path); ok {
		c.metrics.SizeBytes.Add(-old.(*entry).size)
		c.metrics.Entries.Add(-1)
	}

	now := time.Now().UnixNano()
	ent := &entry{
		localPath: localPath,
		size:      int64(len(data)),
		storedAt:  now,
	}
	ent.lastAccess.Store(now)
	c.index.Store(path, ent)
	c.metrics.SizeBytes.Add(ent.size)
	c.metrics.Entries.Add(1)

	if c.metrics.SizeBytes.Load() > c.maxBytes {
		select {
		case c.evictCh <- struct{}{}:
		default:
			// A pass is already queued
		}
	}
	return nil
}

// Fetch returns the figure document at path, reading through to object
// storage on a cache miss.
func (c *FigureCache) Fetch(ctx context.Context, store storage.ObjectStorage, path string) ([]byte, error) {
	if data, ok := c.Get(path); ok {
		return data, nil
	}
	data, err := store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := c.Put(path, data); err != nil {
		log.Printf("[WARN] cache: failed to cache %s: %v", path, err)
	}
	return data, nil
}

// Remove drops the entry for path. Returns whether an entry was present.
func (c *FigureCache) Remove(path string) bool {
	return c.removeEntry(path)
}

// RemoveSession drops every cached figure belonging to the session.
func (c *FigureCache) RemoveSession(sessionID string) {
	prefix := storage.SessionPrefix(sessionID)
	c.index.Range(func(key, value interface{}) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.removeEntry(key.(string))
		}
		return true
	})
}

// AttachBus subscribes the cache to removal events so deleted figures stop
// being served. The subscription is released on Close.
func (c *FigureCache) AttachBus(bus *events.Bus) {
	sub := bus.Subscribe("figure-cache", nil)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.stopCh:
				bus.Unsubscribe(sub.ID)
				return
			case ev, ok := <-sub.Ch:
				if !ok {
					return
				}
				switch ev.Type {
				case events.ChartRemoved:
					if ev.Path != "" {
						c.Remove(ev.Path)
					}
				case events.SessionDeleted:
					c.RemoveSession(ev.SessionID)
				}
			}
		}
	}()
}

// HitRate returns the cache hit rate as a percentage.
func (c *FigureCache) HitRate() float64 {
	hits := c.metrics.Hits.Load()
	misses := c.metrics.Misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Stats returns a snapshot of the cache counters.
func (c *FigureCache) Stats() Snapshot {
	return Snapshot{
		Hits:      c.metrics.Hits.Load(),
		Misses:    c.metrics.Misses.Load(),
		Evictions: c.metrics.Evictions.Load(),
		Expired:   c.metrics.Expired.Load(),
		Entries:   c.metrics.Entries.Load(),
		SizeBytes: c.metrics.SizeBytes.Load(),
		HitRate:   c.HitRate(),
	}
}

// evictionWorker runs size eviction on demand and stale expiry on a timer.
func (c *FigureCache) evictionWorker() {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.evictCh:
			c.performEviction()
		case <-ticker.C:
			c.expireStale()
			c.performEviction()
		}
	}
}

// performEviction evicts least-recently-used entries until the cache is
// comfortably under its size bound.
func (c *FigureCache) performEviction() {
	targetSize := int64(float64(c.maxBytes) * 0.9)
	if c.metrics.SizeBytes.Load() <= targetSize {
		return
	}

	type candidate struct {
		path       string
		accessTime int64
	}
	var candidates []candidate

	c.index.Range(func(key, value interface{}) bool {
		ent := value.(*entry)
		candidates = append(candidates, candidate{
			path:       key.(string),
			accessTime: ent.lastAccess.Load(),
		})
		return true
	})

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].accessTime < candidates[j].accessTime
	})

	for _, cand := range candidates {
		if c.metrics.SizeBytes.Load() <= targetSize {
			break
		}
		if c.removeEntry(cand.path) {
			c.metrics.Evictions.Add(1)
		}
	}
}

// expireStale drops entries older than the TTL.
func (c *FigureCache) expireStale() {
	if c.ttl <= 0 {
		return
	}
	cutoff := time.Now().UnixNano() - int64(c.ttl)
	c.index.Range(func(key, value interface{}) bool {
		if value.(*entry).storedAt < cutoff {
			if c.removeEntry(key.(string)) {
				c.metrics.Expired.Add(1)
			}
		}
		return true
	})
}

// removeEntry drops the index entry and its backing file.
func (c *FigureCache) removeEntry(path string) bool {
	value, ok := c.index.LoadAndDelete(path)
	if !ok {
		return false
	}
	ent := value.(*entry)
	os.Remove(ent.localPath)
	c.metrics.SizeBytes.Add(-ent.size)
	c.metrics.Entries.Add(-1)
	return true
}

// clearLeftoverFiles removes cache files from a previous run.
func (c *FigureCache) clearLeftoverFiles() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if os.Remove(filepath.Join(c.dir, e.Name())) == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Printf("cache: cleared %d leftover files", removed)
	}
}

// cacheFileName maps an object path to a flat cache filename.
func cacheFileName(path string) string {
	return fmt.Sprintf("%016x.json", murmur3.Sum64([]byte(path)))
}
