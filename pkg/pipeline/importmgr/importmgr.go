// Package importmgr implements the two independent concurrency gates that
// give the pipeline at-most-once import semantics per file: dependency
// dedup within a single parse cycle, and serialized query-DB application
// across cycles.
package importmgr

import "sync"

// Manager holds the two gates. Zero value is not usable; use New.
type Manager struct {
	mu sync.Mutex

	// dependencyClaimed records paths some in-flight non-interactive parse
	// has already claimed as a dependency.
	dependencyClaimed map[string]bool

	// inFlight records paths currently reserved for a query-DB import that
	// has not yet been marked done.
	inFlight map[string]bool
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		dependencyClaimed: make(map[string]bool),
		inFlight:          make(map[string]bool),
	}
}

// TryMarkDependencyImported idempotently records that some in-flight
// non-interactive parse has already claimed path as a dependency. The first
// caller for a given path gets true; every subsequent caller gets false,
// until the claim is cleared by Reset.
func (m *Manager) TryMarkDependencyImported(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dependencyClaimed[path] {
		return false
	}
	m.dependencyClaimed[path] = true
	return true
}

// Reset clears a dependency claim for path, so a future parse can claim it
// again. Called when path is about to be reparsed.
func (m *Manager) Reset(path string) {
	m.mu.Lock()
	delete(m.dependencyClaimed, path)
	m.mu.Unlock()
}

// StartQueryDbImport reserves the right to apply an update for path into the
// query database. It returns false if a prior import for path has not yet
// been marked Done — the caller must drop its candidate update in that case.
func (m *Manager) StartQueryDbImport(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[path] {
		return false
	}
	m.inFlight[path] = true
	return true
}

// DoneQueryDbImport releases the gate reserved by StartQueryDbImport. Calling
// it without a matching Start is a programming error (spec §7: fatal
// invariant) and panics rather than silently corrupting gate state.
func (m *Manager) DoneQueryDbImport(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inFlight[path] {
		panic("importmgr: DoneQueryDbImport without matching StartQueryDbImport for " + path)
	}
	delete(m.inFlight, path)
}
