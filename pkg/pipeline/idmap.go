package pipeline

import "github.com/jmylchreest/aidepipe/pkg/pipeline/model"

// DoIdMapStage is spec.md §4.7's id-map stage. It runs on the query-database
// worker and dequeues from do_id_map: it either reroutes to
// load_previous_index (first time a path with a known-in-db predecessor
// shows up without one attached), drops the candidate (a query-DB import is
// already in flight for this path), or builds IdMaps for the current (and
// previous, if any) index and forwards to on_id_mapped.
func (p *Pipeline) DoIdMapStage() bool {
	item, ok := p.doIdMap.TryDequeue()
	if !ok {
		return false
	}

	path := item.Current.Path

	if item.Previous == nil && !item.LoadPrevious {
		p.dbMu.RLock()
		known := p.db.KnowsPath(path)
		p.dbMu.RUnlock()
		if known {
			item.LoadPrevious = true
			p.loadPreviousIndex.Enqueue(loadPreviousRequest{item: item})
			return true
		}
	}

	if !p.importMgr.StartQueryDbImport(path) {
		pipeLog.Printf("id-map: dropping %s, query-db import already in flight", path)
		return true
	}

	p.dbMu.Lock()
	curMap := model.NewIdMap(p.db, item.Current)
	var prevMap *model.IdMap
	if item.Previous != nil {
		prevMap = model.NewIdMap(p.db, item.Previous)
	}
	p.dbMu.Unlock()

	p.onIdMapped.Enqueue(model.IndexOnIdMapped{
		CurrentFile:  item.Current,
		CurrentMap:   curMap,
		PreviousFile: item.Previous,
		PreviousMap:  prevMap,
		Write:        item.Write,
		Interactive:  item.Interactive,
		Perf:         item.Perf,
	})
	return true
}

// LoadPreviousIndex is the load_previous_index worker from spec.md §4.7: it
// runs on the indexer pool, reads cache.TryTakeOrLoad(path) into the pending
// item's Previous field, and forwards back to do_id_map.
func (p *Pipeline) LoadPreviousIndex() bool {
	req, ok := p.loadPreviousIndex.TryDequeue()
	if !ok {
		return false
	}
	req.item.Previous = p.cacheMgr.TryTakeOrLoad(req.item.Current.Path)
	p.doIdMap.Enqueue(req.item)
	return true
}
