// Package pipeline implements the indexing pipeline core: the bounded
// multi-queue network, the parse/id-map/delta/merge/apply stages, and the
// worker-pool driver that ties them together. Everything outside this
// package (the semantic parser, the cache store, the file watcher, the
// editor transport) is an external collaborator reached only through the
// interfaces declared here.
package pipeline

import (
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/aidepipe/pkg/pipeline/cache"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/fileconsumer"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/importmgr"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/queue"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/timestamp"
)

var pipeLog = log.New(os.Stderr, "[aidepipe:pipeline] ", log.Ltime)

// FileSystem is the out-of-scope file-system I/O collaborator: reading
// modification times and raw contents off disk.
type FileSystem interface {
	ModTime(path string) (unixSeconds int64, ok bool)
	ReadFile(path string) (contents string, ok bool)
}

// OSFileSystem is the real, disk-backed FileSystem.
type OSFileSystem struct{}

func (OSFileSystem) ModTime(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().Unix(), true
}

func (OSFileSystem) ReadFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Config tunes the worker-pool driver.
type Config struct {
	// NumIndexWorkers is the size of the indexer worker pool (pool 1 in
	// spec.md §5). The query-DB apply worker (pool 2) is always exactly one.
	NumIndexWorkers int

	// ProgressReportFrequencyMs: <0 disables progress reporting, 0 emits on
	// every worker-cycle exit, >0 throttles emission to at most once per
	// that many milliseconds unless a queue or the active-thread count is
	// non-zero.
	ProgressReportFrequencyMs int64
}

// DefaultConfig returns a conservative fixed pool of 4 indexer workers and a
// 500ms progress throttle.
func DefaultConfig() Config {
	return Config{NumIndexWorkers: 4, ProgressReportFrequencyMs: 500}
}

// Pipeline wires every component in spec.md §4 together and owns the five
// named queues plus the two worker pools that drive them.
type Pipeline struct {
	cfg Config

	indexer      Indexer
	fs           FileSystem
	workingFiles WorkingFiles
	diagnostics  DiagnosticsSink
	progress     ProgressSink
	search       SearchIndex

	cacheMgr  *cache.Manager
	tsMgr     *timestamp.Manager
	importMgr *importmgr.Manager
	consumer  *fileconsumer.Shared

	db   *model.QueryDatabase
	dbMu sync.RWMutex

	status model.ImportPipelineStatus

	indexRequest      *queue.Queue[model.IndexRequest]
	doIdMap           *queue.Queue[model.IndexDoIdMap]
	loadPreviousIndex *queue.Queue[loadPreviousRequest]
	onIdMapped        *queue.Queue[model.IndexOnIdMapped]
	onIndexed         *queue.Queue[model.IndexOnIndexed]

	indexerWaiter *queue.Waiter
	queryDbWaiter *queue.Waiter

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// loadPreviousRequest carries the pending do_id_map item across the
// load_previous_index round-trip described in spec.md §4.7.
type loadPreviousRequest struct {
	item model.IndexDoIdMap
}

// New builds a Pipeline. cacheStore backs the cache manager; indexer,
// workingFiles, diagnostics and progress may be nil, in which case headless
// defaults (NopDiagnosticsSink, NewMapWorkingFiles, a discarding progress
// sink) are used.
func New(cfg Config, indexer Indexer, cacheStore cache.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:          cfg,
		indexer:      indexer,
		fs:           OSFileSystem{},
		workingFiles: NewMapWorkingFiles(),
		diagnostics:  NopDiagnosticsSink{},
		progress:     ProgressSinkFunc(func(Progress) {}),
		search:       NopSearchIndex{},
		cacheMgr:     cache.New(cacheStore),
		tsMgr:        timestamp.New(),
		importMgr:    importmgr.New(),
		consumer:     fileconsumer.New(),
		db:           model.NewQueryDatabase(),
		stop:         make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}

	p.indexerWaiter = queue.NewWaiter()
	p.queryDbWaiter = queue.NewWaiter()

	// index_request and on_id_mapped/on_indexed/load_previous_index feed the
	// indexer pool's wait set (spec.md §4.11); do_id_map and on_indexed feed
	// the query-DB worker's wait set.
	p.indexRequest = queue.New[model.IndexRequest](p.indexerWaiter)
	p.doIdMap = queue.New[model.IndexDoIdMap](p.queryDbWaiter)
	p.loadPreviousIndex = queue.New[loadPreviousRequest](p.indexerWaiter)
	p.onIdMapped = queue.New[model.IndexOnIdMapped](p.indexerWaiter)
	p.onIndexed = queue.New[model.IndexOnIndexed](p.queryDbWaiter)

	p.indexerWaiter.Watch(p.indexRequest)
	p.indexerWaiter.Watch(p.onIdMapped)
	p.indexerWaiter.Watch(p.loadPreviousIndex)
	p.indexerWaiter.Watch(p.onIndexed)

	p.queryDbWaiter.Watch(p.doIdMap)
	p.queryDbWaiter.Watch(p.onIndexed)

	return p
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

func WithFileSystem(fs FileSystem) Option         { return func(p *Pipeline) { p.fs = fs } }
func WithWorkingFiles(wf WorkingFiles) Option      { return func(p *Pipeline) { p.workingFiles = wf } }
func WithDiagnosticsSink(d DiagnosticsSink) Option { return func(p *Pipeline) { p.diagnostics = d } }
func WithProgressSink(s ProgressSink) Option       { return func(p *Pipeline) { p.progress = s } }
func WithSearchIndex(s SearchIndex) Option         { return func(p *Pipeline) { p.search = s } }

// SubmitRequest enqueues a new (path, args, interactive?, contents) request.
func (p *Pipeline) SubmitRequest(req model.IndexRequest) {
	p.indexRequest.Enqueue(req)
}

// Database returns the shared query database. It has no lock of its own and
// the pipeline's internal lock is not exposed; only the apply stage mutates it.
func (p *Pipeline) Database() *model.QueryDatabase {
	return p.db
}

// Evict drops path's resident cache entry, used when a file watcher reports
// a removal so a later resurrection reparses from scratch rather than
// serving a stale borrowed IndexFile.
func (p *Pipeline) Evict(path string) {
	p.cacheMgr.Evict(path)
}

// QueueDepths reports the current size of all five queues, for status/health
// reporting outside the progress-report throttle.
func (p *Pipeline) QueueDepths() Progress {
	return Progress{
		IndexRequestCount:      p.indexRequest.Size(),
		DoIdMapCount:           p.doIdMap.Size(),
		LoadPreviousIndexCount: p.loadPreviousIndex.Size(),
		OnIdMappedCount:        p.onIdMapped.Size(),
		OnIndexedCount:         p.onIndexed.Size(),
		ActiveThreads:          atomic.LoadInt64(&p.status.NumActiveThreads),
	}
}

// Run starts NumIndexWorkers indexer workers and the single query-DB worker.
// It returns immediately; call Stop to shut down.
func (p *Pipeline) Run() {
	n := p.cfg.NumIndexWorkers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.indexerWorkerLoop()
	}
	p.wg.Add(1)
	go p.queryDbWorkerLoop()
	pipeLog.Printf("started %d indexer workers + 1 query-db worker", n)
}

// Stop signals all workers to exit after their current cycle and waits for
// them to finish. Outstanding queue items are discarded, per spec.md §5's
// "no cancellation at core level; outstanding requests on shutdown are
// discarded."
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.indexerWaiter.Close()
		p.queryDbWaiter.Close()
	})
	p.wg.Wait()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// activeThread brackets one pass through a worker's driver body: increments
// NumActiveThreads on entry, decrements and optionally emits progress on
// exit. Mirrors the original's ActiveThread RAII guard.
type activeThread struct {
	p *Pipeline
}

func (p *Pipeline) enterActive() activeThread {
	atomic.AddInt64(&p.status.NumActiveThreads, 1)
	return activeThread{p: p}
}

func (a activeThread) leave() {
	atomic.AddInt64(&a.p.status.NumActiveThreads, -1)
	a.p.maybeEmitProgress()
}

func (p *Pipeline) maybeEmitProgress() {
	freq := p.cfg.ProgressReportFrequencyMs
	if freq < 0 {
		return
	}
	depths := p.QueueDepths()
	anyCounterNonZero := depths.IndexRequestCount != 0 || depths.DoIdMapCount != 0 ||
		depths.LoadPreviousIndexCount != 0 || depths.OnIdMappedCount != 0 ||
		depths.OnIndexedCount != 0 || depths.ActiveThreads != 0

	now := nowMillis()
	next := atomic.LoadInt64(&p.status.NextProgressOutput)
	if freq > 0 && !anyCounterNonZero && now < next {
		return
	}
	if freq > 0 {
		atomic.StoreInt64(&p.status.NextProgressOutput, now+freq)
	}
	p.progress.OnProgress(depths)
}
