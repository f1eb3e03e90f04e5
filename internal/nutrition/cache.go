package nutrition

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/noot-app/foodscan-mcp-server/internal/store"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// Cache maps normalized food names to resolved nutrition records and writes
// the whole map to a JSON file on every insert
type Cache struct {
	mu         sync.RWMutex
	path       string
	entries    map[string]types.NutritionRecord
	memoryOnly bool
	log        *slog.Logger
}

// NewCache creates an empty cache backed by path. An empty path keeps the
// cache in memory only.
func NewCache(path string, logger *slog.Logger) *Cache {
	return &Cache{
		path:       path,
		entries:    make(map[string]types.NutritionRecord),
		memoryOnly: path == "",
		log:        logger,
	}
}

// Load replaces the in-memory entries with the file contents. A missing or
// corrupt file leaves the cache empty; the error is returned for logging only.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]types.NutritionRecord)
	if c.path == "" {
		return nil
	}

	var onDisk map[string]types.NutritionRecord
	if err := store.ReadJSON(c.path, &onDisk); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log.Debug("No nutrition cache on disk", "path", c.path)
			return nil
		}
		c.log.Warn("Nutrition cache unreadable, starting empty", "path", c.path, "error", err)
		return err
	}

	for key, rec := range onDisk {
		c.entries[Normalize(key)] = rec
	}
	c.log.Info("Nutrition cache loaded", "path", c.path, "entries", len(c.entries))
	return nil
}

// Save writes the full cache to disk
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

// Get returns the cached record for name
func (c *Cache) Get(name string) (types.NutritionRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.entries[Normalize(name)]
	return rec, ok
}

// Put stores rec under name and persists the cache. An existing entry is only
// replaced by a record whose source ranks at least as high; stored reports
// whether the record was kept. A persistence failure still leaves the record
// in memory and switches the cache to memory-only.
func (c *Cache) Put(name string, rec types.NutritionRecord) (stored bool, err error) {
	key := Normalize(name)
	if key == "" {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok && rec.Source.Rank() < existing.Source.Rank() {
		c.log.Debug("Keeping higher-ranked cache entry",
			"food", key,
			"existing_source", existing.Source,
			"incoming_source", rec.Source)
		return false, nil
	}

	c.entries[key] = rec
	return true, c.persistLocked()
}

// Len returns the number of cached records
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops all entries and persists the empty cache
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]types.NutritionRecord)
	return c.persistLocked()
}

// MemoryOnly reports whether the cache has stopped writing to disk
func (c *Cache) MemoryOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.memoryOnly
}

func (c *Cache) persistLocked() error {
	if c.memoryOnly {
		return nil
	}
	if err := store.WriteJSON(c.path, c.entries); err != nil {
		c.memoryOnly = true
		c.log.Error("Nutrition cache persist failed, continuing in memory only",
			"path", c.path,
			"error", err)
		return &PersistenceError{Path: c.path, Err: err}
	}
	return nil
}
