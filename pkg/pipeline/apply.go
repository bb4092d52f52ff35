package pipeline

// ApplyStage is spec.md §4.10's apply stage: it runs on the query-database
// worker, dequeues from on_indexed, refreshes open-buffer bookkeeping for
// every touched path, applies the update atomically to the query database,
// and finally releases the query-DB import gate for each touched path.
func (p *Pipeline) ApplyStage() bool {
	item, ok := p.onIndexed.TryDequeue()
	if !ok {
		return false
	}
	update := item.Update

	for _, path := range update.FilesDefUpdate {
		if wf, open := p.workingFiles.Get(path); open {
			content, cached := p.cacheMgr.LoadCachedFileContents(path)
			if !cached {
				content = wf.BufferContent
			}
			p.workingFiles.SetIndexContent(path, content)
			p.workingFiles.SetInactiveRegions(path, update.CurrentFile.SkippedByPreprocessor)
		}
	}

	p.dbMu.Lock()
	p.db.Apply(update)
	p.dbMu.Unlock()

	p.search.Sync(update)

	for _, path := range update.FilesDefUpdate {
		if _, open := p.workingFiles.Get(path); open {
			// Semantic highlighting recomputation is driven by the
			// out-of-scope editor transport; the pipeline only guarantees
			// the query database is current by the time this runs.
			_ = path
		}
	}

	for _, path := range update.FilesDefUpdate {
		p.importMgr.DoneQueryDbImport(path)
	}
	return true
}
