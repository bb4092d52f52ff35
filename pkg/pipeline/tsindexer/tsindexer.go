// Package tsindexer adapts pkg/code's tree-sitter symbol extraction into the
// pipeline.Indexer interface: it is the concrete out-of-scope collaborator
// referenced by spec.md §4.6 and detailed in SPEC_FULL.md §4.14.
package tsindexer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/aidepipe/pkg/code"
	"github.com/jmylchreest/aidepipe/pkg/grammar"
	"github.com/jmylchreest/aidepipe/pkg/pipeline"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

var tsLog = log.New(os.Stderr, "[aidepipe:tsindexer] ", log.Ltime)

// Indexer parses source text with pkg/code.Parser and projects the resulting
// symbols and references into the pipeline's model.IndexFile shape. One
// IndexFile is produced per input FileContents; args are recorded verbatim
// on every produced file so a later reparse can detect a compile-argument
// change (spec.md §4.6 treats that identically to a timestamp mismatch, but
// argument comparison itself is left to the caller of Index).
type Indexer struct {
	parser *code.Parser
}

// New builds an Indexer backed by loader for grammar resolution.
func New(loader grammar.Loader) *Indexer {
	return &Indexer{parser: code.NewParser(loader)}
}

// Close releases cached tree-sitter queries.
func (ix *Indexer) Close() { ix.parser.Close() }

var _ pipeline.Indexer = (*Indexer)(nil)

// Index implements pipeline.Indexer. files[0] is always the primary
// requested path; any further entries are dependency files supplied by the
// cache manager's IterateLoadedCaches pass in pipeline.DoParse.
func (ix *Indexer) Index(args []string, files []pipeline.FileContents) ([]*model.IndexFile, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("tsindexer: no files to index")
	}
	primary := files[0].Path

	out := make([]*model.IndexFile, 0, len(files))
	for _, f := range files {
		idx, err := ix.indexOne(primary, args, f)
		if err != nil {
			tsLog.Printf("index %s: %v", f.Path, err)
			continue
		}
		if idx != nil {
			out = append(out, idx)
		}
	}
	return out, nil
}

func (ix *Indexer) indexOne(primary string, args []string, f pipeline.FileContents) (*model.IndexFile, error) {
	lang := code.DetectLanguage(f.Path, []byte(f.Contents))
	if lang == "" {
		return nil, nil // unsupported language: silently skip, per pkg/code convention
	}

	symbols, err := ix.parser.ParseContent([]byte(f.Contents), lang, f.Path)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	refs, err := ix.parser.ParseContentReferences([]byte(f.Contents), lang, f.Path)
	if err != nil {
		// Reference queries are optional per language; a failure here should
		// not sink the symbol extraction that already succeeded.
		refs = nil
	}

	idx := model.NewIndexFile(f.Path, primary)
	idx.Language = lang
	idx.Args = append([]string(nil), args...)
	idx.Includes, idx.Dependencies = resolveIncludes(f.Path, refs)

	if info, err := os.Stat(f.Path); err == nil {
		idx.LastModificationTime = info.ModTime().Unix()
	}

	for _, sym := range symbols {
		addSymbol(idx, f.Path, sym)
	}

	return idx, nil
}

// addSymbol interns sym's Usr under the model kind its code.Symbol.Kind maps
// to and appends the corresponding IndexType/IndexFunc/IndexVar record. The
// USR is synthesized from (path, kind, name): pkg/code doesn't compute a
// compiler-grade mangled name, so identity is only as stable as a symbol's
// name staying put within its file, which is sufficient for the diffing
// pkg/pipeline/model.CreateDelta performs.
func addSymbol(idx *model.IndexFile, path string, sym *code.Symbol) {
	usr := model.Usr(fmt.Sprintf("%s#%s@%s", path, sym.Kind, sym.Name))
	rng := model.Range{StartLine: sym.StartLine, StartCol: 0, EndLine: sym.EndLine, EndCol: 0}

	switch sym.Kind {
	case code.KindFunction, code.KindMethod:
		id := idx.IdCache.Intern(model.KindFunc, usr)
		idx.Funcs = append(idx.Funcs, &model.IndexFunc{
			ID:                 id,
			Usr:                usr,
			ShortName:          sym.Name,
			DetailedName:       sym.Signature,
			Kind:               sym.Kind,
			Comments:           sym.DocComment,
			DefinitionSpelling: rng,
			DefinitionExtent:   rng,
			DeclaringType:      -1,
		})
	case code.KindClass, code.KindInterface, code.KindType:
		id := idx.IdCache.Intern(model.KindType, usr)
		idx.Types = append(idx.Types, &model.IndexType{
			ID:                 id,
			Usr:                usr,
			ShortName:          sym.Name,
			DetailedName:       sym.Signature,
			Kind:               sym.Kind,
			Comments:           sym.DocComment,
			DefinitionSpelling: rng,
			DefinitionExtent:   rng,
			AliasOf:            -1,
		})
	default: // code.KindVariable, code.KindConstant
		id := idx.IdCache.Intern(model.KindVar, usr)
		idx.Vars = append(idx.Vars, &model.IndexVar{
			ID:                 id,
			Usr:                usr,
			ShortName:          sym.Name,
			DetailedName:       sym.Signature,
			Kind:               sym.Kind,
			Comments:           sym.DocComment,
			Declaration:        rng,
			DefinitionSpelling: rng,
			VariableType:       -1,
			DeclaringType:      -1,
		})
	}
}

// resolveIncludes turns import-kind references into Includes (for symbols
// carrying a resolvable line) and Dependencies (paths pkg/pipeline treats as
// files whose own staleness gates a reparse of path, per spec.md §4.6's
// dependency-walk). Resolution is best-effort: a bare specifier is only
// turned into a dependency path if a matching file exists alongside path.
func resolveIncludes(path string, refs []*code.Reference) ([]model.Include, []string) {
	dir := filepath.Dir(path)
	var includes []model.Include
	var deps []string
	seen := map[string]bool{}

	for _, r := range refs {
		if r.Kind != code.RefKindImport {
			continue
		}
		resolved := resolveImportSpecifier(dir, r.SymbolName)
		includes = append(includes, model.Include{Line: r.Line, ResolvedPath: resolved})
		if resolved != "" && !seen[resolved] {
			seen[resolved] = true
			deps = append(deps, resolved)
		}
	}
	return includes, deps
}

// resolveImportSpecifier tries the small set of relative-import conventions
// covered by the tag-query pack (a bare relative path, optionally missing
// its extension). Absolute-module and package-manager imports are left
// unresolved, matching the "best effort" contract callers of pkg/code's
// reference extraction already assume.
func resolveImportSpecifier(dir, spec string) string {
	spec = strings.Trim(spec, `"'`)
	if spec == "" || strings.HasPrefix(spec, ".") == false && !filepath.IsAbs(spec) {
		return ""
	}
	candidate := filepath.Join(dir, spec)
	if fileExists(candidate) {
		return candidate
	}
	for ext := range code.LangExtensions {
		if fileExists(candidate + ext) {
			return candidate + ext
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
