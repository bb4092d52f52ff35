package pipeline

import "github.com/jmylchreest/aidepipe/pkg/pipeline/model"

// FileContents pairs a path with source text, the unit the Indexer consumes
// and the unit a WorkingFile buffer exposes.
type FileContents struct {
	Path     string
	Contents string
}

// Indexer is the out-of-scope semantic parser: a black box that turns
// source text and compile arguments into a symbol-bearing index. Concrete
// implementation: pkg/pipeline/tsindexer.Indexer.
type Indexer interface {
	Index(args []string, files []FileContents) ([]*model.IndexFile, error)
}

// Diagnostic is an opaque per-location note the indexer wants surfaced to an
// editor; the pipeline core never inspects its fields beyond forwarding.
type Diagnostic struct {
	Line, Column int
	Severity     string
	Message      string
}

// DiagnosticsSink pushes diagnostics for a non-interactive parse to the
// (out-of-scope) editor transport.
type DiagnosticsSink interface {
	EmitDiagnostics(path string, diagnostics []Diagnostic)
}

// NopDiagnosticsSink discards diagnostics; useful for headless indexing
// (batch reindex, CLI one-shot runs) where nothing is listening.
type NopDiagnosticsSink struct{}

func (NopDiagnosticsSink) EmitDiagnostics(string, []Diagnostic) {}

// WorkingFile is one editor-open buffer's view of a path.
type WorkingFile struct {
	Path          string
	BufferContent string
	IndexContent  string
	BufferLines   []string
	Version       int
}

// WorkingFiles looks up editor-open buffers by path; the apply stage
// consults it to decide between cached-on-disk and in-buffer contents, and
// to refresh IndexContent/inactive regions after an update is applied.
type WorkingFiles interface {
	Get(path string) (*WorkingFile, bool)
	SetIndexContent(path, content string)
	SetInactiveRegions(path string, regions []model.Range)
}

// MapWorkingFiles is a minimal in-memory WorkingFiles, sufficient for a
// headless daemon with no live editor buffers.
type MapWorkingFiles struct {
	files map[string]*WorkingFile
}

func NewMapWorkingFiles() *MapWorkingFiles {
	return &MapWorkingFiles{files: make(map[string]*WorkingFile)}
}

func (m *MapWorkingFiles) Get(path string) (*WorkingFile, bool) {
	f, ok := m.files[path]
	return f, ok
}

func (m *MapWorkingFiles) Open(path, contents string) {
	m.files[path] = &WorkingFile{Path: path, BufferContent: contents}
}

func (m *MapWorkingFiles) Close(path string) {
	delete(m.files, path)
}

func (m *MapWorkingFiles) SetIndexContent(path, content string) {
	if f, ok := m.files[path]; ok {
		f.IndexContent = content
	}
}

func (m *MapWorkingFiles) SetInactiveRegions(path string, regions []model.Range) {
	// Headless working-file set has nowhere to render inactive regions; the
	// call is accepted so callers don't need a type switch.
	_ = path
	_ = regions
}

// SearchIndex is the out-of-scope full-text search collaborator: kept in
// sync with the query database so a client can look symbols up by name
// substring rather than only by exact USR. Concrete implementation:
// pkg/pipeline/searchindex.Index.
type SearchIndex interface {
	Sync(update *model.IndexUpdate)
}

// NopSearchIndex discards updates; the default when no search index is
// configured.
type NopSearchIndex struct{}

func (NopSearchIndex) Sync(*model.IndexUpdate) {}

// Progress mirrors spec.md §6's progress message.
type Progress struct {
	IndexRequestCount      int
	DoIdMapCount           int
	LoadPreviousIndexCount int
	OnIdMappedCount        int
	OnIndexedCount         int
	ActiveThreads          int64
}

// ProgressSink receives periodic Progress reports.
type ProgressSink interface {
	OnProgress(Progress)
}

// ProgressSinkFunc adapts a function to ProgressSink.
type ProgressSinkFunc func(Progress)

func (f ProgressSinkFunc) OnProgress(p Progress) { f(p) }
