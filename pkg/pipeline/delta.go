package pipeline

import "github.com/jmylchreest/aidepipe/pkg/pipeline/model"

// DoCreateIndexUpdate is spec.md §4.8's delta-build stage: it runs on the
// indexer pool, dequeues from on_id_mapped, computes the delta via
// model.CreateDelta, optionally persists the new index to the cache, and
// enqueues the result into on_indexed.
func (p *Pipeline) DoCreateIndexUpdate() bool {
	item, ok := p.onIdMapped.TryDequeue()
	if !ok {
		return false
	}

	update := model.CreateDelta(item.PreviousMap, item.CurrentMap, item.PreviousFile, item.CurrentFile)

	if item.Write {
		if err := p.cacheMgr.WriteToCache(item.CurrentFile); err != nil {
			pipeLog.Printf("delta: write cache for %s: %v", item.CurrentFile.Path, err)
		} else {
			p.tsMgr.UpdateCachedModificationTime(item.CurrentFile.Path, item.CurrentFile.LastModificationTime)
		}
	}

	p.onIndexed.Enqueue(model.IndexOnIndexed{Update: update, Perf: item.Perf})
	return true
}
