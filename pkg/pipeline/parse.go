package pipeline

import (
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
)

// fileParseQuery mirrors the FileParseQuery enum from spec.md §4.6.
type fileParseQuery int

const (
	needsParse fileParseQuery = iota
	doesNotNeedParse
	noSuchFile
)

// fileNeedsParse implements the timestamp-gated decision from spec.md §4.6
// step 2: a dependency already claimed by another in-flight parse never
// needs reparsing; a file whose disk mtime doesn't match the last cached
// mtime does.
func (p *Pipeline) fileNeedsParse(path string, isDependency, interactive bool) fileParseQuery {
	if isDependency && !interactive {
		if !p.importMgr.TryMarkDependencyImported(path) {
			return doesNotNeedParse
		}
	}

	mtime, ok := p.fs.ModTime(path)
	if !ok {
		return noSuchFile
	}

	cached, ok := p.tsMgr.GetLastCachedModificationTime(p.cacheMgr, path)
	if !ok || cached != mtime {
		p.consumer.Reset(path)
		return needsParse
	}
	return doesNotNeedParse
}

// DoParse runs the parse stage (spec.md §4.6) for one dequeued request. It
// reports whether it did any work, so the driver loop can tell an idle pass
// from a productive one.
func (p *Pipeline) DoParse() bool {
	req, ok := p.indexRequest.TryDequeue()
	if !ok {
		return false
	}

	prev := p.cacheMgr.TryLoad(req.Path)
	if prev != nil {
		needsReparse := req.IsInteractive
		result := p.fileNeedsParse(req.Path, false, req.IsInteractive)
		if result == noSuchFile {
			pipeLog.Printf("parse: %s no longer exists, dropping request", req.Path)
			return true
		}
		if result == needsParse {
			needsReparse = true
		}

		// Do not break early: every dependency must still be visited so
		// file_consumer_shared reflects the full claimed set (spec.md §4.6).
		for _, dep := range prev.Dependencies {
			if p.fileNeedsParse(dep, true, req.IsInteractive) != doesNotNeedParse {
				needsReparse = true
			}
		}

		if !needsReparse {
			cur := p.cacheMgr.TakeOrLoad(req.Path)
			p.doIdMap.Enqueue(model.IndexDoIdMap{Current: cur, Write: false, Interactive: req.IsInteractive})
			for _, dep := range prev.Dependencies {
				if p.consumer.Mark(dep) {
					if depFile := p.cacheMgr.TryTakeOrLoad(dep); depFile != nil {
						p.doIdMap.Enqueue(model.IndexDoIdMap{Current: depFile, Write: false, Interactive: req.IsInteractive})
					}
				}
			}
			return true
		}
	}

	fileContents := []FileContents{{Path: req.Path, Contents: req.Contents}}
	seen := map[string]bool{req.Path: true}

	p.cacheMgr.IterateLoadedCaches(func(path string, f *model.IndexFile) {
		if seen[path] {
			return
		}
		if contents, ok := p.fs.ReadFile(path); ok {
			fileContents = append(fileContents, FileContents{Path: path, Contents: contents})
			seen[path] = true
		}
	})

	// A batch/reindex request carries no editor-buffer contents; treat the
	// primary as "not already present" and read it off disk. An interactive
	// request already supplied real buffer contents above.
	if req.Contents == "" {
		contents, ok := p.fs.ReadFile(req.Path)
		if !ok {
			pipeLog.Printf("parse: failed to read primary file %s, dropping request", req.Path)
			return true
		}
		fileContents[0].Contents = contents
	}

	indexes, err := p.indexer.Index(req.Args, fileContents)
	if err != nil {
		pipeLog.Printf("parse: indexer failed for %s: %v", req.Path, err)
		return true
	}

	for _, idx := range indexes {
		if !req.IsInteractive {
			p.diagnostics.EmitDiagnostics(idx.Path, nil)
		}
		p.cacheMgr.Put(idx)
		p.doIdMap.Enqueue(model.IndexDoIdMap{Current: idx, Write: true, Interactive: req.IsInteractive})
	}
	return true
}
