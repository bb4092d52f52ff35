package watchbridge

import (
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/aidepipe/pkg/pipeline"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

type fakeStore struct{}

func (fakeStore) Load(path string) (*model.IndexFile, error)   { return nil, errNotFound }
func (fakeStore) Store(file *model.IndexFile) error             { return nil }
func (fakeStore) LoadFileContents(path string) (string, bool, error) { return "", false, nil }

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}

func newTestPipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{NumIndexWorkers: 1}, nil, fakeStore{})
}

func TestBridgeOnChangesSubmitsWriteEvents(t *testing.T) {
	pipe := newTestPipeline()
	b := New(pipe, nil)

	b.OnChanges(map[string]fsnotify.Op{"a.go": fsnotify.Write})

	if got := pipe.QueueDepths().IndexRequestCount; got != 1 {
		t.Fatalf("IndexRequestCount = %d, want 1", got)
	}
}

func TestBridgeOnChangesEvictsRemoveEventsWithoutSubmitting(t *testing.T) {
	pipe := newTestPipeline()
	b := New(pipe, nil)

	b.OnChanges(map[string]fsnotify.Op{"a.go": fsnotify.Remove})

	if got := pipe.QueueDepths().IndexRequestCount; got != 0 {
		t.Fatalf("IndexRequestCount = %d, want 0 for a pure remove event", got)
	}
}

func TestBridgeOnChangesUsesArgsFunc(t *testing.T) {
	pipe := newTestPipeline()
	var gotPath string
	b := New(pipe, func(path string) []string {
		gotPath = path
		return []string{"-x", "c"}
	})

	b.OnChanges(map[string]fsnotify.Op{"a.c": fsnotify.Create})

	if gotPath != "a.c" {
		t.Fatalf("argsFor called with %q, want a.c", gotPath)
	}
}
