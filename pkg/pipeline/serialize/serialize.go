// Package serialize implements the reflective IndexFile codec: the same
// field list is walked to produce either a pretty-printed textual tree
// (single-line arrays, 2-space indent) or a compact binary form, and to read
// either format back. A "test output" mode drops volatile fields and
// projects resolved paths down to a stable basename, for fixture-friendly
// diffs.
//
// Grounded on original_source/src/serializer.cc's Reflect(Writer&, T&) /
// Reflect(Reader&, T&) overload pairs; no example repo in the retrieval pack
// ships an equivalent multi-format reflective codec, so the field walk is
// reproduced directly rather than imported.
package serialize

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

// Format selects the wire representation.
type Format int

const (
	FormatJSON Format = iota
	FormatBinary
)

// Options controls how a file is projected during serialization.
type Options struct {
	// TestOutput drops version, last_modification_time, language,
	// import_file, args and dependencies, and rewrites every resolved path
	// to its basename (prefixed with '&' if not already so), to stabilize
	// fixtures.
	TestOutput bool
}

func projectPath(p string) string {
	base := filepath.Base(p)
	if strings.HasPrefix(base, "&") {
		return base
	}
	return "&" + base
}

// jsonDoc mirrors the fields Reflect(..., IndexFile&) walks, in the same
// order, so pretty-printing sees a stable field ordering.
type jsonDoc struct {
	Version               *int             `json:"version,omitempty"`
	Path                  string           `json:"path"`
	ImportFile            *string          `json:"import_file,omitempty"`
	LastModificationTime  *int64           `json:"last_modification_time,omitempty"`
	Language              *string          `json:"language,omitempty"`
	Args                  []string         `json:"args,omitempty"`
	Includes              []jsonInclude    `json:"includes"`
	SkippedByPreprocessor []jsonRange      `json:"skipped_by_preprocessor"`
	Dependencies          []string         `json:"dependencies,omitempty"`
	Types                 []jsonType       `json:"types"`
	Funcs                 []jsonFunc       `json:"funcs"`
	Vars                  []jsonVar        `json:"vars"`
}

type jsonRange struct {
	StartLine, StartCol, EndLine, EndCol int
}

type jsonInclude struct {
	Line         int
	ResolvedPath string
}

type jsonType struct {
	ID                 int32
	Usr                string
	ShortName          string
	DetailedName       string
	Kind               string
	Hover              string
	Comments           string
	DefinitionSpelling jsonRange
	DefinitionExtent   jsonRange
	AliasOf            int32
	Parents            []int32
	Derived            []int32
	Types              []int32
	Funcs              []int32
	Vars               []int32
	Instances          []int32
	Uses               []jsonRange
}

type jsonFunc struct {
	ID                 int32
	IsOperator         bool
	Usr                string
	ShortName          string
	DetailedName       string
	Kind               string
	Hover              string
	Comments           string
	Declarations       []jsonRange
	DefinitionSpelling jsonRange
	DefinitionExtent   jsonRange
	DeclaringType      int32
	Base               []int32
	Derived            []int32
	Locals             []int32
	Callers            []int32
	Callees            []int32
}

type jsonVar struct {
	ID                 int32
	Usr                string
	ShortName          string
	DetailedName       string
	Hover              string
	Comments           string
	Declaration        jsonRange
	DefinitionSpelling jsonRange
	DefinitionExtent   jsonRange
	VariableType       int32
	DeclaringType      int32
	Kind               string
	Uses               []jsonRange
}

func toJsonRange(r model.Range) jsonRange {
	return jsonRange{r.StartLine, r.StartCol, r.EndLine, r.EndCol}
}

func fromJsonRange(r jsonRange) model.Range {
	return model.Range{StartLine: r.StartLine, StartCol: r.StartCol, EndLine: r.EndLine, EndCol: r.EndCol}
}

func toJsonDoc(f *model.IndexFile, opt Options) *jsonDoc {
	d := &jsonDoc{Path: f.Path}
	if !opt.TestOutput {
		v := f.Version
		d.Version = &v
		imp := f.ImportFile
		d.ImportFile = &imp
		lmt := f.LastModificationTime
		d.LastModificationTime = &lmt
		lang := f.Language
		d.Language = &lang
		d.Args = f.Args
		d.Dependencies = f.Dependencies
	}

	for _, inc := range f.Includes {
		path := inc.ResolvedPath
		if opt.TestOutput {
			path = projectPath(path)
		}
		d.Includes = append(d.Includes, jsonInclude{Line: inc.Line, ResolvedPath: path})
	}
	for _, r := range f.SkippedByPreprocessor {
		d.SkippedByPreprocessor = append(d.SkippedByPreprocessor, toJsonRange(r))
	}

	for _, t := range f.Types {
		d.Types = append(d.Types, jsonType{
			ID: t.ID, Usr: string(t.Usr), ShortName: t.ShortName, DetailedName: t.DetailedName,
			Kind: t.Kind, Hover: t.Hover, Comments: t.Comments,
			DefinitionSpelling: toJsonRange(t.DefinitionSpelling), DefinitionExtent: toJsonRange(t.DefinitionExtent),
			AliasOf: t.AliasOf, Parents: t.Parents, Derived: t.Derived,
			Types: t.Types, Funcs: t.Funcs, Vars: t.Vars, Instances: t.Instances,
			Uses: mapRanges(t.Uses),
		})
	}
	for _, fn := range f.Funcs {
		d.Funcs = append(d.Funcs, jsonFunc{
			ID: fn.ID, IsOperator: fn.IsOperator, Usr: string(fn.Usr), ShortName: fn.ShortName,
			DetailedName: fn.DetailedName, Kind: fn.Kind, Hover: fn.Hover, Comments: fn.Comments,
			Declarations:       mapRanges(fn.Declarations),
			DefinitionSpelling: toJsonRange(fn.DefinitionSpelling),
			DefinitionExtent:   toJsonRange(fn.DefinitionExtent),
			DeclaringType:      fn.DeclaringType,
			Base:               fn.Base, Derived: fn.Derived, Locals: fn.Locals,
			Callers: fn.Callers, Callees: fn.Callees,
		})
	}
	for _, v := range f.Vars {
		d.Vars = append(d.Vars, jsonVar{
			ID: v.ID, Usr: string(v.Usr), ShortName: v.ShortName, DetailedName: v.DetailedName,
			Hover: v.Hover, Comments: v.Comments,
			Declaration:        toJsonRange(v.Declaration),
			DefinitionSpelling: toJsonRange(v.DefinitionSpelling),
			DefinitionExtent:   toJsonRange(v.DefinitionExtent),
			VariableType:       v.VariableType, DeclaringType: v.DeclaringType, Kind: v.Kind,
			Uses: mapRanges(v.Uses),
		})
	}
	return d
}

func mapRanges(rs []model.Range) []jsonRange {
	if rs == nil {
		return nil
	}
	out := make([]jsonRange, len(rs))
	for i, r := range rs {
		out[i] = toJsonRange(r)
	}
	return out
}

func fromJsonDoc(d *jsonDoc) *model.IndexFile {
	f := &model.IndexFile{Path: d.Path, IdCache: model.NewIdCache()}
	if d.Version != nil {
		f.Version = *d.Version
	} else {
		f.Version = model.CurrentIndexFileVersion
	}
	if d.ImportFile != nil {
		f.ImportFile = *d.ImportFile
	}
	if d.LastModificationTime != nil {
		f.LastModificationTime = *d.LastModificationTime
	}
	if d.Language != nil {
		f.Language = *d.Language
	}
	f.Args = d.Args
	f.Dependencies = d.Dependencies

	for _, inc := range d.Includes {
		f.Includes = append(f.Includes, model.Include{Line: inc.Line, ResolvedPath: inc.ResolvedPath})
	}
	for _, r := range d.SkippedByPreprocessor {
		f.SkippedByPreprocessor = append(f.SkippedByPreprocessor, fromJsonRange(r))
	}

	for _, t := range d.Types {
		f.Types = append(f.Types, &model.IndexType{
			ID: t.ID, Usr: model.Usr(t.Usr), ShortName: t.ShortName, DetailedName: t.DetailedName,
			Kind: t.Kind, Hover: t.Hover, Comments: t.Comments,
			DefinitionSpelling: fromJsonRange(t.DefinitionSpelling), DefinitionExtent: fromJsonRange(t.DefinitionExtent),
			AliasOf: t.AliasOf, Parents: t.Parents, Derived: t.Derived,
			Types: t.Types, Funcs: t.Funcs, Vars: t.Vars, Instances: t.Instances,
			Uses: unmapRanges(t.Uses),
		})
		f.IdCache.Intern(model.KindType, model.Usr(t.Usr))
	}
	for _, fn := range d.Funcs {
		f.Funcs = append(f.Funcs, &model.IndexFunc{
			ID: fn.ID, IsOperator: fn.IsOperator, Usr: model.Usr(fn.Usr), ShortName: fn.ShortName,
			DetailedName: fn.DetailedName, Kind: fn.Kind, Hover: fn.Hover, Comments: fn.Comments,
			Declarations:       unmapRanges(fn.Declarations),
			DefinitionSpelling: fromJsonRange(fn.DefinitionSpelling),
			DefinitionExtent:   fromJsonRange(fn.DefinitionExtent),
			DeclaringType:      fn.DeclaringType,
			Base:               fn.Base, Derived: fn.Derived, Locals: fn.Locals,
			Callers: fn.Callers, Callees: fn.Callees,
		})
		f.IdCache.Intern(model.KindFunc, model.Usr(fn.Usr))
	}
	for _, v := range d.Vars {
		f.Vars = append(f.Vars, &model.IndexVar{
			ID: v.ID, Usr: model.Usr(v.Usr), ShortName: v.ShortName, DetailedName: v.DetailedName,
			Hover: v.Hover, Comments: v.Comments,
			Declaration:        fromJsonRange(v.Declaration),
			DefinitionSpelling: fromJsonRange(v.DefinitionSpelling),
			DefinitionExtent:   fromJsonRange(v.DefinitionExtent),
			VariableType:       v.VariableType, DeclaringType: v.DeclaringType, Kind: v.Kind,
			Uses: unmapRanges(v.Uses),
		})
		f.IdCache.Intern(model.KindVar, model.Usr(v.Usr))
	}
	return f
}

func unmapRanges(rs []jsonRange) []model.Range {
	if rs == nil {
		return nil
	}
	out := make([]model.Range, len(rs))
	for i, r := range rs {
		out[i] = fromJsonRange(r)
	}
	return out
}

// Serialize renders f in the given format. JSON output uses 2-space
// indentation with every array collapsed onto a single line, matching the
// original rapidjson PrettyWriter with kFormatSingleLineArray.
func Serialize(format Format, f *model.IndexFile, opt Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		d := toJsonDoc(f, opt)
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("serialize: marshal json: %w", err)
		}
		return prettyPrintSingleLineArrays(raw)
	case FormatBinary:
		return serializeBinary(f, opt)
	default:
		return nil, fmt.Errorf("serialize: unknown format %d", format)
	}
}

// Deserialize parses raw back into an IndexFile. expectedVersion is compared
// against the embedded version field (skipped in test-output mode); a
// mismatch is reported as "absent" via a nil, nil return, matching the
// cache-miss-on-version-mismatch policy.
func Deserialize(format Format, path string, raw []byte, expectedVersion int) (*model.IndexFile, error) {
	var f *model.IndexFile
	switch format {
	case FormatJSON:
		var d jsonDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, nil // parse error -> treat as absent, per cache-incompatibility policy
		}
		f = fromJsonDoc(&d)
	case FormatBinary:
		var err error
		f, err = deserializeBinary(raw)
		if err != nil {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("deserialize: unknown format %d", format)
	}

	if f.Version != 0 && f.Version != expectedVersion {
		return nil, nil
	}
	f.Path = path
	return f, nil
}

// frame tracks one open '{' or '[' while reformatting: whether it is an
// array (kept on one line), whether a sibling item has already been written
// (so the next one needs a leading comma), and — for objects — whether the
// next string token is a key or the value that follows it.
type frame struct {
	isArray     bool
	wroteItem   bool
	expectKey   bool // objects only: true when the next string token is a key
}

// prettyPrintSingleLineArrays reformats compact JSON with 2-space indented
// objects but every array collapsed onto one line, by re-walking the decoded
// token stream through encoding/json's tokenizer and tracking one explicit
// stack of open containers.
func prettyPrintSingleLineArrays(compact []byte) ([]byte, error) {
	dec := json.NewDecoder(strings.NewReader(string(compact)))
	var buf strings.Builder
	var stack []*frame

	writeIndent := func(depth int) {
		buf.WriteByte('\n')
		for i := 0; i < depth; i++ {
			buf.WriteString("  ")
		}
	}

	// inArray reports whether any open container is an array: everything
	// nested inside an array, objects included, stays on that array's line.
	inArray := func() bool {
		for _, f := range stack {
			if f.isArray {
				return true
			}
		}
		return false
	}

	// startItem emits the separator/indentation needed before writing the
	// next *item* of the current top-of-stack container (an array element,
	// or an object key) and marks the container as having one. It must NOT
	// be called for the value half of an object's "key: value" pair — that
	// value immediately follows the key with no separator of its own.
	startItem := func() {
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		oneLine := inArray()
		if top.wroteItem {
			buf.WriteByte(',')
			if oneLine {
				buf.WriteByte(' ')
			}
		}
		if !oneLine {
			writeIndent(len(stack))
		}
		top.wroteItem = true
	}

	// beforeToken is called once for every token that begins a JSON value
	// (object-open, array-open, string, number, bool, null) and reports
	// whether the token should be treated as a fresh item (needing
	// startItem) or as the value half of an already-started object entry.
	beforeToken := func(isString bool) (isObjectKey bool) {
		if len(stack) == 0 {
			return false
		}
		top := stack[len(stack)-1]
		if top.isArray {
			startItem()
			return false
		}
		if top.expectKey {
			startItem()
			top.expectKey = false
			return isString
		}
		// value half of "key: value": no separator, flip back to key mode.
		top.expectKey = true
		return false
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("serialize: reformat: %w", err)
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				beforeToken(false)
				buf.WriteByte('{')
				stack = append(stack, &frame{isArray: false, expectKey: true})
			case '}':
				f := stack[len(stack)-1]
				if f.wroteItem && !inArray() {
					writeIndent(len(stack) - 1)
				}
				buf.WriteByte('}')
				stack = stack[:len(stack)-1]
			case '[':
				beforeToken(false)
				buf.WriteByte('[')
				stack = append(stack, &frame{isArray: true})
			case ']':
				buf.WriteByte(']')
				stack = stack[:len(stack)-1]
			}
		case string:
			isKey := beforeToken(true)
			// Write '&', '<' and '>' literally rather than as \u escapes.
			var sb strings.Builder
			enc := json.NewEncoder(&sb)
			enc.SetEscapeHTML(false)
			enc.Encode(v)
			buf.WriteString(strings.TrimSuffix(sb.String(), "\n"))
			if isKey {
				buf.WriteString(": ")
			}
		default:
			beforeToken(false)
			enc, _ := json.Marshal(v)
			buf.Write(enc)
		}
	}
	return []byte(buf.String()), nil
}

// --- binary format ---
//
// A compact, length-prefixed encoding of the same field list, written with
// bufio+encoding/binary rather than a generic binary codec: framing mirrors
// the msgpack packer used by the original 1:1 (array-of-fields per record),
// without pulling in a code-generated msgpack dependency.

func writeStr(w *bufio.Writer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.Write(lenBuf[:])
	w.WriteString(s)
}

func readStr(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeI32(w *bufio.Writer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.Write(b[:])
}

func readI32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func writeI64(w *bufio.Writer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.Write(b[:])
}

func readI64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func writeRange(w *bufio.Writer, r model.Range) {
	writeI32(w, int32(r.StartLine))
	writeI32(w, int32(r.StartCol))
	writeI32(w, int32(r.EndLine))
	writeI32(w, int32(r.EndCol))
}

func readRange(r io.Reader) (model.Range, error) {
	var out model.Range
	vals := make([]int32, 4)
	for i := range vals {
		v, err := readI32(r)
		if err != nil {
			return out, err
		}
		vals[i] = v
	}
	return model.Range{StartLine: int(vals[0]), StartCol: int(vals[1]), EndLine: int(vals[2]), EndCol: int(vals[3])}, nil
}

func writeI32Slice(w *bufio.Writer, s []int32) {
	writeI32(w, int32(len(s)))
	for _, v := range s {
		writeI32(w, v)
	}
}

func readI32Slice(r io.Reader) ([]int32, error) {
	n, err := readI32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]int32, n)
	for i := range out {
		v, err := readI32(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func serializeBinary(f *model.IndexFile, opt Options) ([]byte, error) {
	var out strings.Builder
	w := bufio.NewWriter(&out)

	version := f.Version
	if opt.TestOutput {
		version = 0
	}
	writeI32(w, int32(version))
	writeStr(w, f.Path)
	if !opt.TestOutput {
		writeStr(w, f.ImportFile)
		writeI64(w, f.LastModificationTime)
		writeStr(w, f.Language)
		writeI32(w, int32(len(f.Args)))
		for _, a := range f.Args {
			writeStr(w, a)
		}
		writeI32(w, int32(len(f.Dependencies)))
		for _, d := range f.Dependencies {
			writeStr(w, d)
		}
	}

	writeI32(w, int32(len(f.Includes)))
	for _, inc := range f.Includes {
		writeI32(w, int32(inc.Line))
		path := inc.ResolvedPath
		if opt.TestOutput {
			path = projectPath(path)
		}
		writeStr(w, path)
	}

	writeI32(w, int32(len(f.SkippedByPreprocessor)))
	for _, r := range f.SkippedByPreprocessor {
		writeRange(w, r)
	}

	writeI32(w, int32(len(f.Types)))
	for _, t := range f.Types {
		writeI32(w, t.ID)
		writeStr(w, string(t.Usr))
		writeStr(w, t.ShortName)
		writeStr(w, t.DetailedName)
		writeStr(w, t.Kind)
		writeStr(w, t.Hover)
		writeStr(w, t.Comments)
		writeRange(w, t.DefinitionSpelling)
		writeRange(w, t.DefinitionExtent)
		writeI32(w, t.AliasOf)
		writeI32Slice(w, t.Parents)
		writeI32Slice(w, t.Derived)
		writeI32Slice(w, t.Types)
		writeI32Slice(w, t.Funcs)
		writeI32Slice(w, t.Vars)
		writeI32Slice(w, t.Instances)
		writeI32(w, int32(len(t.Uses)))
		for _, r := range t.Uses {
			writeRange(w, r)
		}
	}

	writeI32(w, int32(len(f.Funcs)))
	for _, fn := range f.Funcs {
		writeI32(w, fn.ID)
		if fn.IsOperator {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
		writeStr(w, string(fn.Usr))
		writeStr(w, fn.ShortName)
		writeStr(w, fn.DetailedName)
		writeStr(w, fn.Kind)
		writeStr(w, fn.Hover)
		writeStr(w, fn.Comments)
		writeI32(w, int32(len(fn.Declarations)))
		for _, r := range fn.Declarations {
			writeRange(w, r)
		}
		writeRange(w, fn.DefinitionSpelling)
		writeRange(w, fn.DefinitionExtent)
		writeI32(w, fn.DeclaringType)
		writeI32Slice(w, fn.Base)
		writeI32Slice(w, fn.Derived)
		writeI32Slice(w, fn.Locals)
		writeI32Slice(w, fn.Callers)
		writeI32Slice(w, fn.Callees)
	}

	writeI32(w, int32(len(f.Vars)))
	for _, v := range f.Vars {
		writeI32(w, v.ID)
		writeStr(w, string(v.Usr))
		writeStr(w, v.ShortName)
		writeStr(w, v.DetailedName)
		writeStr(w, v.Hover)
		writeStr(w, v.Comments)
		writeRange(w, v.Declaration)
		writeRange(w, v.DefinitionSpelling)
		writeRange(w, v.DefinitionExtent)
		writeI32(w, v.VariableType)
		writeI32(w, v.DeclaringType)
		writeStr(w, v.Kind)
		writeI32(w, int32(len(v.Uses)))
		for _, r := range v.Uses {
			writeRange(w, r)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("serialize: flush binary: %w", err)
	}
	return []byte(out.String()), nil
}

func deserializeBinary(raw []byte) (*model.IndexFile, error) {
	r := strings.NewReader(string(raw))
	f := &model.IndexFile{IdCache: model.NewIdCache()}

	version, err := readI32(r)
	if err != nil {
		return nil, err
	}
	f.Version = int(version)

	if f.Path, err = readStr(r); err != nil {
		return nil, err
	}
	if version != 0 {
		if f.ImportFile, err = readStr(r); err != nil {
			return nil, err
		}
		if f.LastModificationTime, err = readI64(r); err != nil {
			return nil, err
		}
		if f.Language, err = readStr(r); err != nil {
			return nil, err
		}
		n, err := readI32(r)
		if err != nil {
			return nil, err
		}
		for i := int32(0); i < n; i++ {
			s, err := readStr(r)
			if err != nil {
				return nil, err
			}
			f.Args = append(f.Args, s)
		}
		n, err = readI32(r)
		if err != nil {
			return nil, err
		}
		for i := int32(0); i < n; i++ {
			s, err := readStr(r)
			if err != nil {
				return nil, err
			}
			f.Dependencies = append(f.Dependencies, s)
		}
	}

	nInc, err := readI32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < nInc; i++ {
		line, err := readI32(r)
		if err != nil {
			return nil, err
		}
		path, err := readStr(r)
		if err != nil {
			return nil, err
		}
		f.Includes = append(f.Includes, model.Include{Line: int(line), ResolvedPath: path})
	}

	nSkip, err := readI32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < nSkip; i++ {
		rg, err := readRange(r)
		if err != nil {
			return nil, err
		}
		f.SkippedByPreprocessor = append(f.SkippedByPreprocessor, rg)
	}

	nTypes, err := readI32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < nTypes; i++ {
		t := &model.IndexType{}
		if t.ID, err = readI32(r); err != nil {
			return nil, err
		}
		usr, err := readStr(r)
		if err != nil {
			return nil, err
		}
		t.Usr = model.Usr(usr)
		if t.ShortName, err = readStr(r); err != nil {
			return nil, err
		}
		if t.DetailedName, err = readStr(r); err != nil {
			return nil, err
		}
		if t.Kind, err = readStr(r); err != nil {
			return nil, err
		}
		if t.Hover, err = readStr(r); err != nil {
			return nil, err
		}
		if t.Comments, err = readStr(r); err != nil {
			return nil, err
		}
		if t.DefinitionSpelling, err = readRange(r); err != nil {
			return nil, err
		}
		if t.DefinitionExtent, err = readRange(r); err != nil {
			return nil, err
		}
		if t.AliasOf, err = readI32(r); err != nil {
			return nil, err
		}
		if t.Parents, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if t.Derived, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if t.Types, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if t.Funcs, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if t.Vars, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if t.Instances, err = readI32Slice(r); err != nil {
			return nil, err
		}
		nUses, err := readI32(r)
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < nUses; j++ {
			rg, err := readRange(r)
			if err != nil {
				return nil, err
			}
			t.Uses = append(t.Uses, rg)
		}
		f.Types = append(f.Types, t)
		f.IdCache.Intern(model.KindType, t.Usr)
	}

	nFuncs, err := readI32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < nFuncs; i++ {
		fn := &model.IndexFunc{}
		if fn.ID, err = readI32(r); err != nil {
			return nil, err
		}
		var opByte [1]byte
		if _, err := io.ReadFull(r, opByte[:]); err != nil {
			return nil, err
		}
		fn.IsOperator = opByte[0] == 1
		usr, err := readStr(r)
		if err != nil {
			return nil, err
		}
		fn.Usr = model.Usr(usr)
		if fn.ShortName, err = readStr(r); err != nil {
			return nil, err
		}
		if fn.DetailedName, err = readStr(r); err != nil {
			return nil, err
		}
		if fn.Kind, err = readStr(r); err != nil {
			return nil, err
		}
		if fn.Hover, err = readStr(r); err != nil {
			return nil, err
		}
		if fn.Comments, err = readStr(r); err != nil {
			return nil, err
		}
		nDecl, err := readI32(r)
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < nDecl; j++ {
			rg, err := readRange(r)
			if err != nil {
				return nil, err
			}
			fn.Declarations = append(fn.Declarations, rg)
		}
		if fn.DefinitionSpelling, err = readRange(r); err != nil {
			return nil, err
		}
		if fn.DefinitionExtent, err = readRange(r); err != nil {
			return nil, err
		}
		if fn.DeclaringType, err = readI32(r); err != nil {
			return nil, err
		}
		if fn.Base, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if fn.Derived, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if fn.Locals, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if fn.Callers, err = readI32Slice(r); err != nil {
			return nil, err
		}
		if fn.Callees, err = readI32Slice(r); err != nil {
			return nil, err
		}
		f.Funcs = append(f.Funcs, fn)
		f.IdCache.Intern(model.KindFunc, fn.Usr)
	}

	nVars, err := readI32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < nVars; i++ {
		v := &model.IndexVar{}
		if v.ID, err = readI32(r); err != nil {
			return nil, err
		}
		usr, err := readStr(r)
		if err != nil {
			return nil, err
		}
		v.Usr = model.Usr(usr)
		if v.ShortName, err = readStr(r); err != nil {
			return nil, err
		}
		if v.DetailedName, err = readStr(r); err != nil {
			return nil, err
		}
		if v.Hover, err = readStr(r); err != nil {
			return nil, err
		}
		if v.Comments, err = readStr(r); err != nil {
			return nil, err
		}
		if v.Declaration, err = readRange(r); err != nil {
			return nil, err
		}
		if v.DefinitionSpelling, err = readRange(r); err != nil {
			return nil, err
		}
		if v.DefinitionExtent, err = readRange(r); err != nil {
			return nil, err
		}
		if v.VariableType, err = readI32(r); err != nil {
			return nil, err
		}
		if v.DeclaringType, err = readI32(r); err != nil {
			return nil, err
		}
		if v.Kind, err = readStr(r); err != nil {
			return nil, err
		}
		nUses, err := readI32(r)
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < nUses; j++ {
			rg, err := readRange(r)
			if err != nil {
				return nil, err
			}
			v.Uses = append(v.Uses, rg)
		}
		f.Vars = append(f.Vars, v)
		f.IdCache.Intern(model.KindVar, v.Usr)
	}

	return f, nil
}
