// Package cache implements the in-memory half of the cache manager: a
// mutex-guarded resident set of IndexFiles sitting in front of a durable
// Store, matching the borrow-vs-own semantics spec.md requires (TryLoad
// borrows, TakeOrLoad/TryTakeOrLoad transfer ownership).
package cache

import (
	"log"
	"os"
	"sync"

	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

var cacheLog = log.New(os.Stderr, "[aidepipe:cache] ", log.Ltime)

// Store is the durable backing half of the cache manager. BoltCacheStore in
// pkg/pipeline/cachestore implements this.
type Store interface {
	Load(path string) (*model.IndexFile, error)
	Store(file *model.IndexFile) error
	LoadFileContents(path string) (string, bool, error)
}

// Manager is the cache manager described in spec.md §4.4. The in-memory map
// is authoritative for "loaded" files; anything evicted from it must be
// reloaded from disk via Store.
type Manager struct {
	mu     sync.Mutex
	store  Store
	loaded map[string]*model.IndexFile
}

// New returns a Manager backed by store.
func New(store Store) *Manager {
	return &Manager{store: store, loaded: make(map[string]*model.IndexFile)}
}

// TryLoad returns the in-memory-resident IndexFile for path, if any. The
// returned pointer is a borrow: valid only until the next call that might
// evict it (TryTakeOrLoad/TakeOrLoad for the same path). Callers that need
// to keep or mutate the result must take ownership first.
func (m *Manager) TryLoad(path string) *model.IndexFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded[path]
}

// TryTakeOrLoad removes path from the in-memory cache if present (returning
// it, now owned by the caller); otherwise loads and deserializes it from
// disk. Returns nil if neither is possible.
func (m *Manager) TryTakeOrLoad(path string) *model.IndexFile {
	m.mu.Lock()
	if f, ok := m.loaded[path]; ok {
		delete(m.loaded, path)
		m.mu.Unlock()
		return f
	}
	m.mu.Unlock()

	f, err := m.store.Load(path)
	if err != nil {
		cacheLog.Printf("load %s: %v", path, err)
		return nil
	}
	return f
}

// TakeOrLoad is TryTakeOrLoad but for callers that require success; nil
// indicates the caller has a logic error (the path is known to exist).
func (m *Manager) TakeOrLoad(path string) *model.IndexFile {
	return m.TryTakeOrLoad(path)
}

// IterateLoadedCaches visits every currently-resident IndexFile while
// holding the cache lock. fn must not re-enter the cache manager.
func (m *Manager) IterateLoadedCaches(fn func(path string, f *model.IndexFile)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, f := range m.loaded {
		fn(path, f)
	}
}

// WriteToCache serializes and persists file, and makes it the resident
// in-memory copy for its path.
func (m *Manager) WriteToCache(file *model.IndexFile) error {
	if err := m.store.Store(file); err != nil {
		return err
	}
	m.mu.Lock()
	m.loaded[file.Path] = file
	m.mu.Unlock()
	return nil
}

// Put makes file the resident in-memory copy without persisting it to disk,
// used to admit freshly-parsed IndexFiles before the write decision is made.
func (m *Manager) Put(file *model.IndexFile) {
	m.mu.Lock()
	m.loaded[file.Path] = file
	m.mu.Unlock()
}

// LoadCachedFileContents returns the last-known raw source text for path, if
// the cache store retained it alongside the index.
func (m *Manager) LoadCachedFileContents(path string) (string, bool) {
	contents, ok, err := m.store.LoadFileContents(path)
	if err != nil {
		cacheLog.Printf("load contents %s: %v", path, err)
		return "", false
	}
	return contents, ok
}

// Evict drops path from the resident set, e.g. because the file was removed
// from disk.
func (m *Manager) Evict(path string) {
	m.mu.Lock()
	delete(m.loaded, path)
	m.mu.Unlock()
}
