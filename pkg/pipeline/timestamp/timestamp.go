// Package timestamp tracks, per source path, the modification time the
// pipeline last believed was reflected in the on-disk cache — the gate that
// decides whether a file needs to be reparsed.
package timestamp

import (
	"sync"

	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

// CacheLookup is the subset of the cache manager's contract the timestamp
// manager needs: falling back to a persisted IndexFile's own
// LastModificationTime the first time a path is asked about.
type CacheLookup interface {
	TryLoad(path string) *model.IndexFile
}

// Manager maps path -> last-known-cached modification time (unix seconds).
// Safe for concurrent use across many paths.
type Manager struct {
	mu    sync.RWMutex
	times map[string]int64
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{times: make(map[string]int64)}
}

// GetLastCachedModificationTime returns the in-memory value if present;
// otherwise it consults cache for a persisted IndexFile and, if found,
// memoizes and returns its LastModificationTime. The second return value is
// false if no value could be determined either way.
func (m *Manager) GetLastCachedModificationTime(cache CacheLookup, path string) (int64, bool) {
	m.mu.RLock()
	t, ok := m.times[path]
	m.mu.RUnlock()
	if ok {
		return t, true
	}

	if idx := cache.TryLoad(path); idx != nil {
		m.UpdateCachedModificationTime(path, idx.LastModificationTime)
		return idx.LastModificationTime, true
	}
	return 0, false
}

// UpdateCachedModificationTime records t as the last-known-cached
// modification time for path.
func (m *Manager) UpdateCachedModificationTime(path string, t int64) {
	m.mu.Lock()
	m.times[path] = t
	m.mu.Unlock()
}
