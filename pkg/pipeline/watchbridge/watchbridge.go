// Package watchbridge connects pkg/watcher's debounced fsnotify events to a
// running Pipeline: a write/create resubmits an IndexRequest, a remove
// evicts the path's cache entry so a later resurrection reparses from
// scratch. SPEC_FULL.md §4.15.
package watchbridge

import (
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/jmylchreest/aidepipe/pkg/pipeline"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
	"github.com/jmylchreest/aidepipe/pkg/watcher"
)

var bridgeLog = log.New(os.Stderr, "[aidepipe:watchbridge] ", log.Ltime)

// Bridge is a watcher.FileChangeHandler that drives a Pipeline.
type Bridge struct {
	pipe *pipeline.Pipeline
	args func(path string) []string
}

var _ watcher.FileChangeHandler = (*Bridge)(nil)

// New builds a Bridge targeting pipe. argsFor supplies the compile arguments
// a resubmitted IndexRequest should carry for a given path; pass nil to
// always submit an empty argument list.
func New(pipe *pipeline.Pipeline, argsFor func(path string) []string) *Bridge {
	if argsFor == nil {
		argsFor = func(string) []string { return nil }
	}
	return &Bridge{pipe: pipe, args: argsFor}
}

// OnChanges implements watcher.FileChangeHandler.
func (b *Bridge) OnChanges(files map[string]fsnotify.Op) {
	for path, op := range files {
		if watcher.IsRemove(op) {
			b.pipe.Evict(path)
			continue
		}
		b.pipe.SubmitRequest(model.IndexRequest{
			Path:          path,
			Args:          b.args(path),
			IsInteractive: false,
		})
	}
	bridgeLog.Printf("dispatched %d change(s) to pipeline", len(files))
}
