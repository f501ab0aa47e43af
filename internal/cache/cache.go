// Package cache is the local offline key/value collaborator. It accelerates
// the offline path only: correctness-critical state (the quota counter in
// particular) never treats this store as a source of truth.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"neuroflow/internal/logging"
	"neuroflow/internal/types"
)

// EntriesFile is the single JSON file holding all cache entries. Writes to
// it are what the sync watcher observes.
const EntriesFile = "entries.json"

// Cache is a JSON-file-backed entry store with debounced persistence.
type Cache struct {
	mu       sync.Mutex
	dir      string
	filePath string
	entries  map[string]types.CacheEntry
	dirty    bool
}

// New opens (or creates) the cache under the given directory.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &types.StorageError{Op: "create cache dir", Err: err}
	}

	c := &Cache{
		dir:      dir,
		filePath: filepath.Join(dir, EntriesFile),
		entries:  make(map[string]types.CacheEntry),
	}
	if err := c.load(); err != nil {
		// A corrupt cache file degrades to an empty cache; the server
		// remains the source of truth for everything that matters.
		logging.Cache("cache load failed, starting empty: %v", err)
	}
	return c, nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &types.StorageError{Op: "read cache", Err: err}
	}
	var entries map[string]types.CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return &types.StorageError{Op: "decode cache", Err: err}
	}
	c.entries = entries
	return nil
}

// Flush writes the entries to disk immediately.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Cache) saveLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return &types.StorageError{Op: "encode cache", Err: err}
	}
	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return &types.StorageError{Op: "write cache", Err: err}
	}
	c.dirty = false
	return nil
}

// scheduleSave debounces disk writes so bursts of offline edits coalesce.
func (c *Cache) scheduleSave() {
	if c.dirty {
		return
	}
	c.dirty = true
	time.AfterFunc(2*time.Second, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.dirty {
			return
		}
		if err := c.saveLocked(); err != nil {
			logging.Cache("debounced save failed: %v", err)
		}
	})
}

// Set stores an entry under its key.
func (c *Cache) Set(entry types.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry
	c.scheduleSave()
}

// Get returns the entry for key, if present.
func (c *Cache) Get(key string) (types.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// Remove deletes an entry.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.scheduleSave()
}

// Keys returns all keys with the given prefix, sorted for deterministic
// iteration.
func (c *Cache) Keys(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Pending returns all entries still awaiting reconciliation, oldest first.
func (c *Cache) Pending() []types.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []types.CacheEntry
	for _, e := range c.entries {
		if e.SyncState == types.SyncPending {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LocalTimestamp.Before(out[j].LocalTimestamp)
	})
	return out
}

// MarkSynced transitions an entry to synced.
func (c *Cache) MarkSynced(key string) {
	c.mark(key, types.SyncSynced)
}

// MarkConflict transitions an entry to conflict so it survives for user
// review instead of being cleared.
func (c *Cache) MarkConflict(key string) {
	c.mark(key, types.SyncConflict)
}

func (c *Cache) mark(key string, state types.SyncState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.SyncState = state
		c.entries[key] = e
		c.scheduleSave()
	}
}

// QueueWrite records an offline write of an entity as a pending entry.
func (c *Cache) QueueWrite(entityType types.EntityType, key string, payload interface{}, base time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return &types.StorageError{Op: "encode entity", Err: err}
	}
	c.Set(types.CacheEntry{
		Key:            key,
		EntityType:     entityType,
		Payload:        data,
		LocalTimestamp: time.Now(),
		SyncState:      types.SyncPending,
		BaseVersion:    base,
	})
	return nil
}

// Dir returns the cache directory, for the sync watcher.
func (c *Cache) Dir() string { return c.dir }
