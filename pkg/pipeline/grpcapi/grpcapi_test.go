package grpcapi

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jmylchreest/aidepipe/pkg/pipeline"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

type fakeStore struct{}

func (fakeStore) Load(path string) (*model.IndexFile, error)         { return nil, errors.New("not found") }
func (fakeStore) Store(file *model.IndexFile) error                  { return nil }
func (fakeStore) LoadFileContents(path string) (string, bool, error) { return "", false, nil }

func newTestPipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{NumIndexWorkers: 1}, nil, fakeStore{})
}

func TestGetProgressReportsZeroQueuesInitially(t *testing.T) {
	svc := NewService(newTestPipeline(), nil)
	out, err := svc.GetProgress(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if got := out.GetFields()["index_request"].GetNumberValue(); got != 0 {
		t.Errorf("index_request = %v, want 0", got)
	}
}

func TestGetProgressReflectsSubmittedRequest(t *testing.T) {
	pipe := newTestPipeline()
	pipe.SubmitRequest(model.IndexRequest{Path: "a.go"})

	svc := NewService(pipe, nil)
	out, err := svc.GetProgress(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if got := out.GetFields()["index_request"].GetNumberValue(); got != 1 {
		t.Errorf("index_request = %v, want 1", got)
	}
}

func TestGetStatsReportsEmptyDatabase(t *testing.T) {
	svc := NewService(newTestPipeline(), nil)
	out, err := svc.GetStats(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	for _, field := range []string{"types", "funcs", "vars", "files"} {
		if got := out.GetFields()[field].GetNumberValue(); got != 0 {
			t.Errorf("%s = %v, want 0", field, got)
		}
	}
}

func TestGetStartTimeIsNonZero(t *testing.T) {
	svc := NewService(newTestPipeline(), nil)
	ts, err := svc.GetStartTime(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("GetStartTime: %v", err)
	}
	if !ts.IsValid() || ts.AsTime().IsZero() {
		t.Errorf("GetStartTime returned a zero timestamp")
	}
}

func TestReindexSubmitsEachPath(t *testing.T) {
	pipe := newTestPipeline()
	svc := NewService(pipe, nil)

	in, err := structpb.NewStruct(map[string]interface{}{
		"paths": []interface{}{"a.go", "b.go"},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := svc.Reindex(context.Background(), in)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if got := out.GetFields()["accepted"].GetNumberValue(); got != 2 {
		t.Errorf("accepted = %v, want 2", got)
	}
	if got := pipe.QueueDepths().IndexRequestCount; got != 2 {
		t.Errorf("IndexRequestCount = %d, want 2", got)
	}
}

func TestSearchWithNilIndexReturnsEmpty(t *testing.T) {
	svc := NewService(newTestPipeline(), nil)
	in, _ := structpb.NewStruct(map[string]interface{}{"query": "Foo"})

	out, err := svc.Search(context.Background(), in)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	results := out.GetFields()["results"].GetListValue()
	if results == nil || len(results.GetValues()) != 0 {
		t.Errorf("Search with no configured index = %v, want an empty list", results)
	}
}
