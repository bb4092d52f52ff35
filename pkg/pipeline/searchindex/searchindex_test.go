package searchindex

import (
	"testing"

	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

func TestSearchFindsAddedSymbol(t *testing.T) {
	idx := New()
	defer idx.Close()

	idx.Sync(&model.IndexUpdate{
		Path: "user.go",
		FuncsAdded: []*model.QueryFunc{
			{ID: 0, Usr: "user.go#func@GetUserByID", ShortName: "GetUserByID", DetailedName: "func GetUserByID(id int) *User", Kind: "func"},
		},
	})

	results, err := idx.Search("GetUser", Options{Any: true, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	if results[0].Kind != model.KindFunc || results[0].ID != 0 {
		t.Fatalf("got %+v, want kind=func id=0", results[0])
	}
	if results[0].Path != "user.go" {
		t.Fatalf("Path = %q, want user.go", results[0].Path)
	}
}

func TestSearchFiltersByKindWhenNotAny(t *testing.T) {
	idx := New()
	defer idx.Close()

	idx.Sync(&model.IndexUpdate{
		Path:       "user.go",
		TypesAdded: []*model.QueryType{{ID: 0, Usr: "user.go#type@User", ShortName: "User", Kind: "class"}},
		FuncsAdded: []*model.QueryFunc{{ID: 0, Usr: "user.go#func@User", ShortName: "User", Kind: "func"}},
	})

	results, err := idx.Search("User", Options{Kind: model.KindType, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Kind != model.KindType {
			t.Fatalf("got a %s result while filtering to types only", r.Kind)
		}
	}
}

func TestSyncRemovalDropsDoc(t *testing.T) {
	idx := New()
	defer idx.Close()

	added := &model.QueryFunc{ID: 3, Usr: "a.go#func@Foo", ShortName: "Foo", Kind: "func"}
	idx.Sync(&model.IndexUpdate{Path: "a.go", FuncsAdded: []*model.QueryFunc{added}})

	results, err := idx.Search("Foo", Options{Any: true, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results before removal, want 1", len(results))
	}

	idx.Sync(&model.IndexUpdate{Path: "a.go", FuncsRemoved: []*model.QueryFunc{added}})

	results, err = idx.Search("Foo", Options{Any: true, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results after removal, want 0: %+v", len(results), results)
	}
}

func TestSearchNoMatches(t *testing.T) {
	idx := New()
	defer idx.Close()

	results, err := idx.Search("nothing-indexed", Options{Any: true, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results on an empty index, want 0", len(results))
	}
}
