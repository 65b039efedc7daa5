package statebuilder

import (
	"os"
	"sync"

	"pidgin/internal/paths"
)

// Cache memoizes ExperimentView reconstructions keyed by (experiment
// directory, manifest mtime), so a monitor polling at a fast interval
// doesn't re-scan every conversation's event log on every tick unless the
// manifest has actually changed since (spec.md §4.8). It never writes to
// the filesystem.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	manifestModNS int64
	view          ExperimentView
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]cacheEntry{}}
}

// Build returns the cached ExperimentView for this experiment if its
// manifest.json has not changed on disk since the last Build call,
// otherwise it reconstructs and caches a fresh one.
func (c *Cache) Build(outputDir, experimentID string) (ExperimentView, error) {
	manifestPath := paths.ManifestPath(outputDir, experimentID)
	info, err := os.Stat(manifestPath)
	var modNS int64
	if err == nil {
		modNS = info.ModTime().UnixNano()
	}

	key := outputDir + "\x00" + experimentID

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && err == nil && entry.manifestModNS == modNS {
		return entry.view, nil
	}

	view, buildErr := Build(outputDir, experimentID)
	if buildErr != nil {
		return ExperimentView{}, buildErr
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{manifestModNS: modNS, view: view}
	c.mu.Unlock()
	return view, nil
}

// ClearCache discards every cached entry, forcing the next Build call for
// each experiment to reconstruct from disk.
func (c *Cache) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry{}
}
