// Package model holds the wire and in-memory data structures shared across
// the indexing pipeline: the serialized IndexFile, the per-database identifier
// maps built from it, the delta updates computed between versions, and the
// query database those deltas are applied to.
package model

import "sort"

// Usr is a universal symbol reference: a string key stable across
// translation units for one semantic entity.
type Usr string

// SymbolKind distinguishes the three symbol tables carried by an IndexFile.
type SymbolKind int

const (
	KindType SymbolKind = iota
	KindFunc
	KindVar
)

func (k SymbolKind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindFunc:
		return "func"
	case KindVar:
		return "var"
	default:
		return "unknown"
	}
}

// Range is a source range, expressed as inclusive start/end positions.
type Range struct {
	StartLine, StartCol int
	EndLine, EndCol     int
}

// Include is one `#include`/`import`-style reference from a TU to a file it
// pulls in textually.
type Include struct {
	Line         int
	ResolvedPath string
}

// IndexType is the serialized form of a class/struct/interface/typedef.
type IndexType struct {
	ID                int32
	Usr               Usr
	ShortName         string
	DetailedName      string
	Kind              string
	Hover             string
	Comments          string
	DefinitionSpelling Range
	DefinitionExtent   Range
	AliasOf            int32 // -1 if not an alias
	Parents            []int32
	Derived            []int32
	Types              []int32
	Funcs              []int32
	Vars               []int32
	Instances          []int32
	Uses               []Range
}

// IndexFunc is the serialized form of a function/method.
type IndexFunc struct {
	ID                 int32
	IsOperator         bool
	Usr                Usr
	ShortName          string
	DetailedName       string
	Kind               string
	Hover              string
	Comments           string
	Declarations       []Range
	DefinitionSpelling Range
	DefinitionExtent   Range
	DeclaringType      int32 // -1 if free function
	Base               []int32
	Derived            []int32
	Locals             []int32
	Callers            []int32
	Callees            []int32
}

// IndexVar is the serialized form of a variable/field/parameter.
type IndexVar struct {
	ID                 int32
	Usr                Usr
	ShortName          string
	DetailedName       string
	Hover              string
	Comments           string
	Declaration        Range
	DefinitionSpelling Range
	DefinitionExtent   Range
	VariableType       int32 // -1 if unknown
	DeclaringType      int32 // -1 if free variable
	Kind               string
	Uses               []Range
}

// IdCache is the bidirectional map between a symbol's stable USR and its
// dense, zero-based, per-kind local ID within one IndexFile.
type IdCache struct {
	UsrToId map[SymbolKind]map[Usr]int32
	IdToUsr map[SymbolKind]map[int32]Usr
}

// NewIdCache returns an empty, ready-to-use IdCache.
func NewIdCache() *IdCache {
	c := &IdCache{
		UsrToId: make(map[SymbolKind]map[Usr]int32),
		IdToUsr: make(map[SymbolKind]map[int32]Usr),
	}
	for _, k := range []SymbolKind{KindType, KindFunc, KindVar} {
		c.UsrToId[k] = make(map[Usr]int32)
		c.IdToUsr[k] = make(map[int32]Usr)
	}
	return c
}

// Intern assigns (or returns the existing) dense local ID for usr under kind.
func (c *IdCache) Intern(kind SymbolKind, usr Usr) int32 {
	if id, ok := c.UsrToId[kind][usr]; ok {
		return id
	}
	id := int32(len(c.UsrToId[kind]))
	c.UsrToId[kind][usr] = id
	c.IdToUsr[kind][id] = usr
	return id
}

// CurrentIndexFileVersion is bumped whenever the on-disk layout of IndexFile
// changes in a way that makes older cached blobs unreadable.
const CurrentIndexFileVersion = 1

// IndexFile is the serialized semantic index of one translation unit.
type IndexFile struct {
	Version               int
	Path                  string
	ImportFile            string
	LastModificationTime  int64 // unix seconds
	Language              string
	Args                  []string
	Includes              []Include
	SkippedByPreprocessor []Range
	Dependencies          []string
	Types                 []*IndexType
	Funcs                 []*IndexFunc
	Vars                  []*IndexVar
	IdCache               *IdCache
}

// NewIndexFile returns an empty IndexFile ready for population by an Indexer.
func NewIndexFile(path, importFile string) *IndexFile {
	return &IndexFile{
		Version:    CurrentIndexFileVersion,
		Path:       path,
		ImportFile: importFile,
		IdCache:    NewIdCache(),
	}
}

// TypeByUsr, FuncByUsr and VarByUsr look a symbol up by its stable key.
func (f *IndexFile) TypeByUsr(usr Usr) *IndexType {
	if id, ok := f.IdCache.UsrToId[KindType][usr]; ok && int(id) < len(f.Types) {
		return f.Types[id]
	}
	return nil
}

func (f *IndexFile) FuncByUsr(usr Usr) *IndexFunc {
	if id, ok := f.IdCache.UsrToId[KindFunc][usr]; ok && int(id) < len(f.Funcs) {
		return f.Funcs[id]
	}
	return nil
}

func (f *IndexFile) VarByUsr(usr Usr) *IndexVar {
	if id, ok := f.IdCache.UsrToId[KindVar][usr]; ok && int(id) < len(f.Vars) {
		return f.Vars[id]
	}
	return nil
}

// IdMap is a per-(database,file) translation table from a file's local
// symbol IDs to the query database's global IDs. Built when an index is
// admitted; its lifetime ends when the resulting IndexUpdate is applied.
type IdMap struct {
	Path string
	// Global maps local (kind, localID) -> global ID in the QueryDatabase.
	Global map[SymbolKind]map[int32]int32
}

// NewIdMap builds an IdMap for index against db, allocating a global ID for
// every USR in the file's IdCache that the database does not already know
// about, and reusing existing global IDs otherwise.
func NewIdMap(db *QueryDatabase, index *IndexFile) *IdMap {
	m := &IdMap{
		Path:   index.Path,
		Global: make(map[SymbolKind]map[int32]int32),
	}
	for _, kind := range []SymbolKind{KindType, KindFunc, KindVar} {
		m.Global[kind] = make(map[int32]int32)
		for usr, localID := range index.IdCache.UsrToId[kind] {
			m.Global[kind][localID] = db.internGlobalID(kind, usr)
		}
	}
	return m
}

// Translate returns the global ID for a local (kind, localID) pair, or -1 if
// localID is negative (the "no such reference" sentinel used throughout the
// symbol records).
func (m *IdMap) Translate(kind SymbolKind, localID int32) int32 {
	if localID < 0 {
		return -1
	}
	return m.Global[kind][localID]
}

func (m *IdMap) translateSlice(kind SymbolKind, ids []int32) []int32 {
	if ids == nil {
		return nil
	}
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = m.Translate(kind, id)
	}
	return out
}

// FieldReplace records a single scalar field change on an already-admitted
// symbol, expressed in global IDs.
type FieldReplace struct {
	Kind    SymbolKind
	GlobalID int32
	Field   string
	Value   interface{}
}

// IndexUpdate is the delta computed from (previous IndexFile+IdMap, current
// IndexFile+IdMap); the previous pair is absent on first import. It is
// expressed entirely in global IDs so it can be applied to the query
// database, or merged with a sibling update for the same or another file.
type IndexUpdate struct {
	Path string

	TypesAdded, TypesRemoved []*QueryType
	FuncsAdded, FuncsRemoved []*QueryFunc
	VarsAdded, VarsRemoved   []*QueryVar

	FieldReplaces []FieldReplace

	// FilesDefUpdate lists the paths touched by this update, for the apply
	// stage's per-file buffer/inactive-region bookkeeping.
	FilesDefUpdate []string

	// CurrentFile is retained so the apply stage can register/replace the
	// QueryFile record and refresh usr_to_file.
	CurrentFile *IndexFile
	CurrentMap  *IdMap
}

// CreateDelta diffs (prevIndex+prevMap) against (curIndex+curMap), producing
// an IndexUpdate. prevIndex/prevMap may be nil on first import, in which case
// every symbol in curIndex is an addition.
func CreateDelta(prevMap *IdMap, curMap *IdMap, prevIndex, curIndex *IndexFile) *IndexUpdate {
	u := &IndexUpdate{
		Path:           curIndex.Path,
		CurrentFile:    curIndex,
		CurrentMap:     curMap,
		FilesDefUpdate: []string{curIndex.Path},
	}

	prevTypes, prevFuncs, prevVars := map[Usr]*IndexType{}, map[Usr]*IndexFunc{}, map[Usr]*IndexVar{}
	if prevIndex != nil {
		for usr := range prevIndex.IdCache.UsrToId[KindType] {
			prevTypes[usr] = prevIndex.TypeByUsr(usr)
		}
		for usr := range prevIndex.IdCache.UsrToId[KindFunc] {
			prevFuncs[usr] = prevIndex.FuncByUsr(usr)
		}
		for usr := range prevIndex.IdCache.UsrToId[KindVar] {
			prevVars[usr] = prevIndex.VarByUsr(usr)
		}
	}

	for usr, localID := range curIndex.IdCache.UsrToId[KindType] {
		t := curIndex.Types[localID]
		if _, existed := prevTypes[usr]; !existed {
			u.TypesAdded = append(u.TypesAdded, toQueryType(t, curMap))
		}
		delete(prevTypes, usr)
	}
	for usr, localID := range curIndex.IdCache.UsrToId[KindFunc] {
		fn := curIndex.Funcs[localID]
		if _, existed := prevFuncs[usr]; !existed {
			u.FuncsAdded = append(u.FuncsAdded, toQueryFunc(fn, curMap))
		}
		delete(prevFuncs, usr)
	}
	for usr, localID := range curIndex.IdCache.UsrToId[KindVar] {
		v := curIndex.Vars[localID]
		if _, existed := prevVars[usr]; !existed {
			u.VarsAdded = append(u.VarsAdded, toQueryVar(v, curMap))
		}
		delete(prevVars, usr)
	}

	// Whatever is left in prev* existed before but not now: removals.
	for usr, t := range prevTypes {
		u.TypesRemoved = append(u.TypesRemoved, toQueryType(t, prevMap))
		_ = usr
	}
	for usr, fn := range prevFuncs {
		u.FuncsRemoved = append(u.FuncsRemoved, toQueryFunc(fn, prevMap))
		_ = usr
	}
	for usr, v := range prevVars {
		u.VarsRemoved = append(u.VarsRemoved, toQueryVar(v, prevMap))
		_ = usr
	}

	sortQueryTypes(u.TypesAdded)
	sortQueryFuncs(u.FuncsAdded)
	sortQueryVars(u.VarsAdded)

	return u
}

// Merge combines two updates into one, used to opportunistically batch
// updates drained from the same queue. The invariant
// apply(apply(db,A),B) == apply(db, merge(A,B)) requires that A and B touch
// disjoint (or idempotently-overlapping) global ID sets; the pipeline
// guarantees this via the query-DB import gate (see importmgr).
func (u *IndexUpdate) Merge(other *IndexUpdate) {
	u.TypesAdded = append(u.TypesAdded, other.TypesAdded...)
	u.TypesRemoved = append(u.TypesRemoved, other.TypesRemoved...)
	u.FuncsAdded = append(u.FuncsAdded, other.FuncsAdded...)
	u.FuncsRemoved = append(u.FuncsRemoved, other.FuncsRemoved...)
	u.VarsAdded = append(u.VarsAdded, other.VarsAdded...)
	u.VarsRemoved = append(u.VarsRemoved, other.VarsRemoved...)
	u.FieldReplaces = append(u.FieldReplaces, other.FieldReplaces...)
	u.FilesDefUpdate = append(u.FilesDefUpdate, other.FilesDefUpdate...)
	if other.CurrentFile != nil {
		u.CurrentFile = other.CurrentFile
		u.CurrentMap = other.CurrentMap
		u.Path = other.Path
	}
}

func toQueryType(t *IndexType, m *IdMap) *QueryType {
	return &QueryType{
		ID:           m.Translate(KindType, t.ID),
		Usr:          t.Usr,
		ShortName:    t.ShortName,
		DetailedName: t.DetailedName,
		Kind:         t.Kind,
		Hover:        t.Hover,
		Comments:     t.Comments,
		Parents:      m.translateSlice(KindType, t.Parents),
		Derived:      m.translateSlice(KindType, t.Derived),
		Uses:         append([]Range(nil), t.Uses...),
	}
}

func toQueryFunc(fn *IndexFunc, m *IdMap) *QueryFunc {
	return &QueryFunc{
		ID:            m.Translate(KindFunc, fn.ID),
		Usr:           fn.Usr,
		ShortName:     fn.ShortName,
		DetailedName:  fn.DetailedName,
		Kind:          fn.Kind,
		Hover:         fn.Hover,
		Comments:      fn.Comments,
		DeclaringType: m.Translate(KindType, fn.DeclaringType),
		Callers:       m.translateSlice(KindFunc, fn.Callers),
		Callees:       m.translateSlice(KindFunc, fn.Callees),
	}
}

func toQueryVar(v *IndexVar, m *IdMap) *QueryVar {
	return &QueryVar{
		ID:            m.Translate(KindVar, v.ID),
		Usr:           v.Usr,
		ShortName:     v.ShortName,
		DetailedName:  v.DetailedName,
		Kind:          v.Kind,
		Hover:         v.Hover,
		Comments:      v.Comments,
		VariableType:  m.Translate(KindType, v.VariableType),
		DeclaringType: m.Translate(KindType, v.DeclaringType),
		Uses:          append([]Range(nil), v.Uses...),
	}
}

func sortQueryTypes(s []*QueryType) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}
func sortQueryFuncs(s []*QueryFunc) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}
func sortQueryVars(s []*QueryVar) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}

// QueryType, QueryFunc and QueryVar are the query database's admitted,
// globally-identified projections of IndexType/IndexFunc/IndexVar.
type QueryType struct {
	ID           int32
	Usr          Usr
	ShortName    string
	DetailedName string
	Kind         string
	Hover        string
	Comments     string
	Parents      []int32
	Derived      []int32
	Uses         []Range
}

type QueryFunc struct {
	ID            int32
	Usr           Usr
	ShortName     string
	DetailedName  string
	Kind          string
	Hover         string
	Comments      string
	DeclaringType int32
	Callers       []int32
	Callees       []int32
}

type QueryVar struct {
	ID            int32
	Usr           Usr
	ShortName     string
	DetailedName  string
	Kind          string
	Hover         string
	Comments      string
	VariableType  int32
	DeclaringType int32
	Uses          []Range
}

// QueryFile tracks the admitted per-file bookkeeping the database needs to
// answer "is this path already imported."
type QueryFile struct {
	Path   string
	TypeIDs []int32
	FuncIDs []int32
	VarIDs  []int32
}

// QueryDatabase is the in-memory aggregation of all admitted indexes: dense
// arrays keyed by global ID, plus a usr_to_file map used to detect
// "already imported." It is single-writer (the apply stage), many-reader.
type QueryDatabase struct {
	Types []*QueryType
	Funcs []*QueryFunc
	Vars  []*QueryVar
	Files map[string]*QueryFile

	// usrToFile maps a USR (not case-folded) to the path of the file that
	// defines it, for HasFileForUsr. The id-map stage's "already imported"
	// check uses Files, keyed by case-folded path, instead.
	usrToFile map[string]string

	nextGlobalID map[SymbolKind]int32
	usrToGlobal  map[SymbolKind]map[Usr]int32
}

// NewQueryDatabase returns an empty, ready-to-use QueryDatabase.
func NewQueryDatabase() *QueryDatabase {
	db := &QueryDatabase{
		Files:        make(map[string]*QueryFile),
		usrToFile:    make(map[string]string),
		nextGlobalID: make(map[SymbolKind]int32),
		usrToGlobal:  make(map[SymbolKind]map[Usr]int32),
	}
	for _, k := range []SymbolKind{KindType, KindFunc, KindVar} {
		db.usrToGlobal[k] = make(map[Usr]int32)
	}
	return db
}

func foldPath(path string) string {
	// Case-folding is only meaningful on case-insensitive filesystems; the
	// pipeline always folds so behavior is uniform across platforms.
	out := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// internGlobalID returns the existing global ID for usr under kind, or
// allocates the next one.
func (db *QueryDatabase) internGlobalID(kind SymbolKind, usr Usr) int32 {
	if id, ok := db.usrToGlobal[kind][usr]; ok {
		return id
	}
	id := db.nextGlobalID[kind]
	db.usrToGlobal[kind][usr] = id
	db.nextGlobalID[kind]++
	return id
}

// HasFileForUsr reports whether some admitted file already defines usr, and
// if so, which path.
func (db *QueryDatabase) HasFileForUsr(usr Usr) (string, bool) {
	p, ok := db.usrToFile[string(usr)]
	return p, ok
}

// KnowsPath reports whether path has ever been admitted into the database,
// case-folded per filesystem convention.
func (db *QueryDatabase) KnowsPath(path string) bool {
	_, ok := db.Files[foldPath(path)]
	return ok
}

// Apply atomically applies an update to the database: only the apply stage
// may call this, and only ever from one goroutine at a time.
func (db *QueryDatabase) Apply(u *IndexUpdate) {
	removedTypes := map[int32]bool{}
	for _, t := range u.TypesRemoved {
		removedTypes[t.ID] = true
	}
	removedFuncs := map[int32]bool{}
	for _, fn := range u.FuncsRemoved {
		removedFuncs[fn.ID] = true
	}
	removedVars := map[int32]bool{}
	for _, v := range u.VarsRemoved {
		removedVars[v.ID] = true
	}

	db.Types = filterOutTypes(db.Types, removedTypes)
	db.Funcs = filterOutFuncs(db.Funcs, removedFuncs)
	db.Vars = filterOutVars(db.Vars, removedVars)

	fileKey := foldPath(u.Path)
	qf := &QueryFile{Path: u.Path}

	for _, t := range u.TypesAdded {
		db.Types = append(db.Types, t)
		db.usrToFile[string(t.Usr)] = u.Path
		qf.TypeIDs = append(qf.TypeIDs, t.ID)
	}
	for _, fn := range u.FuncsAdded {
		db.Funcs = append(db.Funcs, fn)
		db.usrToFile[string(fn.Usr)] = u.Path
		qf.FuncIDs = append(qf.FuncIDs, fn.ID)
	}
	for _, v := range u.VarsAdded {
		db.Vars = append(db.Vars, v)
		db.usrToFile[string(v.Usr)] = u.Path
		qf.VarIDs = append(qf.VarIDs, v.ID)
	}
	for _, t := range u.TypesRemoved {
		delete(db.usrToFile, string(t.Usr))
	}
	for _, fn := range u.FuncsRemoved {
		delete(db.usrToFile, string(fn.Usr))
	}
	for _, v := range u.VarsRemoved {
		delete(db.usrToFile, string(v.Usr))
	}

	db.Files[fileKey] = qf
}

func filterOutTypes(s []*QueryType, removed map[int32]bool) []*QueryType {
	if len(removed) == 0 {
		return s
	}
	out := s[:0]
	for _, t := range s {
		if !removed[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func filterOutFuncs(s []*QueryFunc, removed map[int32]bool) []*QueryFunc {
	if len(removed) == 0 {
		return s
	}
	out := s[:0]
	for _, fn := range s {
		if !removed[fn.ID] {
			out = append(out, fn)
		}
	}
	return out
}

func filterOutVars(s []*QueryVar, removed map[int32]bool) []*QueryVar {
	if len(removed) == 0 {
		return s
	}
	out := s[:0]
	for _, v := range s {
		if !removed[v.ID] {
			out = append(out, v)
		}
	}
	return out
}

// PerformanceImportFile records elapsed microseconds per phase of a single
// file's trip through the pipeline, for progress/diagnostics purposes.
type PerformanceImportFile struct {
	ParseMicros      int64
	IdMapMicros      int64
	CreateDeltaMicros int64
	ApplyMicros      int64
}

// IndexRequest is the entry message: "please (re)index this source file."
type IndexRequest struct {
	Path          string
	Args          []string
	IsInteractive bool
	Contents      string
}

// IndexDoIdMap carries one produced (or reloaded) IndexFile toward the
// id-map/delta stage.
type IndexDoIdMap struct {
	Current       *IndexFile
	Previous      *IndexFile
	Write         bool
	Interactive   bool
	LoadPrevious  bool
	Perf          PerformanceImportFile
}

// IndexOnIdMapped carries a current (and optionally previous) IndexFile with
// their freshly-built IdMaps toward the delta-build stage.
type IndexOnIdMapped struct {
	CurrentFile  *IndexFile
	CurrentMap   *IdMap
	PreviousFile *IndexFile
	PreviousMap  *IdMap
	Write        bool
	Interactive  bool
	Perf         PerformanceImportFile
}

// IndexOnIndexed carries a computed delta toward the apply stage.
type IndexOnIndexed struct {
	Update *IndexUpdate
	Perf   PerformanceImportFile
}

// ImportPipelineStatus holds process-wide counters shared by every worker.
type ImportPipelineStatus struct {
	NumActiveThreads   int64
	NextProgressOutput int64 // unix millis
}
