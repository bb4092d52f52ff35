// Package searchindex keeps a bleve full-text index of the query database's
// admitted symbols in sync with every applied IndexUpdate, so a client can
// find a symbol by name substring instead of only by exact USR.
// SPEC_FULL.md §4.18.
package searchindex

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/jmylchreest/aidepipe/pkg/pipeline"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

var searchLog = log.New(os.Stderr, "[aidepipe:searchindex] ", log.Ltime)

// Result is one match against the index, carrying enough of the symbol to
// render without a second lookup against the query database.
type Result struct {
	Kind         model.SymbolKind
	ID           int32
	ShortName    string
	DetailedName string
	Path         string
	Score        float64
}

// Options narrows a Search call.
type Options struct {
	Kind  model.SymbolKind // zero value (0 == KindType) means "any" only when Any is set
	Any   bool
	Limit int
}

// Index is a bleve-backed, in-memory (never persisted to disk; it is fully
// derivable from the query database) search index over admitted types,
// funcs and vars.
type Index struct {
	bleve bleve.Index
}

var _ pipeline.SearchIndex = (*Index)(nil)

// New builds an empty Index. It has no on-disk footprint: a restart rebuilds
// it from scratch as the pipeline reprocesses files, the same way the query
// database itself starts empty and is repopulated by admitted updates.
func New() *Index {
	m, err := buildMapping()
	if err != nil {
		// buildMapping only fails on a malformed analyzer/filter registration,
		// which is a programming error, not a runtime condition.
		panic(fmt.Sprintf("searchindex: build mapping: %v", err))
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		panic(fmt.Sprintf("searchindex: new in-memory index: %v", err))
	}
	return &Index{bleve: idx}
}

func buildMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer("standard_lower", map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, err
	}

	if err := im.AddCustomTokenFilter("edge_ngram_filter", map[string]interface{}{
		"type": edgengram.Name,
		"min":  2.0,
		"max":  15.0,
	}); err != nil {
		return nil, err
	}
	if err := im.AddCustomAnalyzer("edge_ngram", map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			"edge_ngram_filter",
		},
	}); err != nil {
		return nil, err
	}

	symbolMapping := bleve.NewDocumentMapping()

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = "standard_lower"
	symbolMapping.AddFieldMappingsAt("name", nameField)

	nameEdgeField := bleve.NewTextFieldMapping()
	nameEdgeField.Analyzer = "edge_ngram"
	nameEdgeField.IncludeInAll = false
	symbolMapping.AddFieldMappingsAt("name_edge", nameEdgeField)

	sigField := bleve.NewTextFieldMapping()
	sigField.Analyzer = "standard_lower"
	symbolMapping.AddFieldMappingsAt("signature", sigField)

	kindField := bleve.NewTextFieldMapping()
	kindField.Analyzer = keyword.Name
	symbolMapping.AddFieldMappingsAt("kind", kindField)

	im.AddDocumentMapping("symbol", symbolMapping)
	im.DefaultMapping = symbolMapping
	return im, nil
}

// Close releases the underlying bleve index.
func (idx *Index) Close() error {
	return idx.bleve.Close()
}

// Sync applies one IndexUpdate: deletes docs for every removed symbol, adds
// or replaces docs for every added one. It runs on the apply stage's single
// writer goroutine, so no locking of its own is needed.
func (idx *Index) Sync(update *model.IndexUpdate) {
	batch := idx.bleve.NewBatch()

	for _, t := range update.TypesRemoved {
		batch.Delete(docID(model.KindType, t.ID))
	}
	for _, fn := range update.FuncsRemoved {
		batch.Delete(docID(model.KindFunc, fn.ID))
	}
	for _, v := range update.VarsRemoved {
		batch.Delete(docID(model.KindVar, v.ID))
	}

	for _, t := range update.TypesAdded {
		batch.Index(docID(model.KindType, t.ID), symbolDoc(t.ShortName, t.DetailedName, t.Kind, update.Path))
	}
	for _, fn := range update.FuncsAdded {
		batch.Index(docID(model.KindFunc, fn.ID), symbolDoc(fn.ShortName, fn.DetailedName, fn.Kind, update.Path))
	}
	for _, v := range update.VarsAdded {
		batch.Index(docID(model.KindVar, v.ID), symbolDoc(v.ShortName, v.DetailedName, v.Kind, update.Path))
	}

	if err := idx.bleve.Batch(batch); err != nil {
		searchLog.Printf("sync %s: %v", update.Path, err)
	}
}

func docID(kind model.SymbolKind, id int32) string {
	return fmt.Sprintf("%s:%d", kind.String(), id)
}

func symbolDoc(shortName, detailedName, kind, path string) map[string]interface{} {
	return map[string]interface{}{
		"name":      shortName,
		"name_edge": shortName,
		"signature": detailedName,
		"kind":      kind,
		"file":      path,
		"type":      "symbol",
	}
}

// Search returns up to opts.Limit matches for query, ranked by bleve score.
// A caller resolves a Result back to its full QueryType/QueryFunc/QueryVar
// via Pipeline.Database() and the returned Kind/ID.
func (idx *Index) Search(query string, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	lower := strings.ToLower(query)

	prefixQuery := bleve.NewPrefixQuery(lower)
	prefixQuery.SetField("name")
	wildcardQuery := bleve.NewWildcardQuery("*" + lower + "*")
	wildcardQuery.SetField("name")
	sigQuery := bleve.NewMatchQuery(query)
	sigQuery.SetField("signature")

	q := bleve.NewDisjunctionQuery(prefixQuery, wildcardQuery, sigQuery)
	req := bleve.NewSearchRequest(q)
	req.Size = limit * 2
	req.Fields = []string{"name", "signature", "kind", "file"}

	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		kind, id, ok := parseDocID(hit.ID)
		if !ok {
			continue
		}
		if !opts.Any && kind != opts.Kind {
			continue
		}
		out = append(out, Result{
			Kind:         kind,
			ID:           id,
			ShortName:    fieldString(hit.Fields, "name"),
			DetailedName: fieldString(hit.Fields, "signature"),
			Path:         fieldString(hit.Fields, "file"),
			Score:        hit.Score,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func parseDocID(id string) (model.SymbolKind, int32, bool) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	var kind model.SymbolKind
	switch parts[0] {
	case "type":
		kind = model.KindType
	case "func":
		kind = model.KindFunc
	case "var":
		kind = model.KindVar
	default:
		return 0, 0, false
	}
	var n int32
	if _, err := fmt.Sscanf(parts[1], "%d", &n); err != nil {
		return 0, 0, false
	}
	return kind, n, true
}
