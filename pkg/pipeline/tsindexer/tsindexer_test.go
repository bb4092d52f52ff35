package tsindexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/aidepipe/pkg/grammar"
	"github.com/jmylchreest/aidepipe/pkg/pipeline"
)

func newTestIndexer() *Indexer {
	loader := grammar.NewCompositeLoader(grammar.WithAutoDownload(false))
	return New(loader)
}

const goSource = `package sample

// Greet says hello.
func Greet(name string) string {
	return "hello " + name
}

type Widget struct {
	Name string
}
`

func TestIndexProducesFuncsAndTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	if err := os.WriteFile(path, []byte(goSource), 0o644); err != nil {
		t.Fatal(err)
	}

	ix := newTestIndexer()
	defer ix.Close()

	files, err := ix.Index(nil, []pipeline.FileContents{{Path: path, Contents: goSource}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d IndexFiles, want 1", len(files))
	}

	idx := files[0]
	if idx.Language != "go" {
		t.Errorf("Language = %q, want go", idx.Language)
	}
	if len(idx.Funcs) != 1 || idx.Funcs[0].ShortName != "Greet" {
		t.Errorf("Funcs = %+v, want one Greet", idx.Funcs)
	}
	if len(idx.Types) != 1 || idx.Types[0].ShortName != "Widget" {
		t.Errorf("Types = %+v, want one Widget", idx.Types)
	}
}

func TestIndexSkipsUnsupportedLanguage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}

	ix := newTestIndexer()
	defer ix.Close()

	files, err := ix.Index(nil, []pipeline.FileContents{{Path: path, Contents: "just some text"}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("got %d IndexFiles for an unsupported extension, want 0", len(files))
	}
}

func TestIndexNoFilesReturnsError(t *testing.T) {
	ix := newTestIndexer()
	defer ix.Close()

	if _, err := ix.Index(nil, nil); err == nil {
		t.Fatal("Index with no files should return an error")
	}
}

func TestResolveImportSpecifierRelative(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "helper.go"), []byte("package sample"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := resolveImportSpecifier(dir, "./helper.go")
	want := filepath.Join(dir, "helper.go")
	if got != want {
		t.Errorf("resolveImportSpecifier = %q, want %q", got, want)
	}
}

func TestResolveImportSpecifierPackageManagerStyleUnresolved(t *testing.T) {
	dir := t.TempDir()
	if got := resolveImportSpecifier(dir, "github.com/some/pkg"); got != "" {
		t.Errorf("resolveImportSpecifier(bare module) = %q, want empty", got)
	}
}
