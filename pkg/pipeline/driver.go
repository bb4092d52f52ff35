package pipeline

import "github.com/jmylchreest/aidepipe/pkg/pipeline/model"

// indexerWorkerLoop is one thread of the indexer pool (spec.md §5, pool 1).
// Each pass executes, in order: DoParse, DoCreateIndexUpdate,
// LoadPreviousIndex, and — only if none of the three did work —
// MergeIndexUpdates. If the whole pass did nothing, it waits on the pool's
// four driving queues.
func (p *Pipeline) indexerWorkerLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		active := p.enterActive()
		didWork := false
		if p.DoParse() {
			didWork = true
		}
		if p.DoCreateIndexUpdate() {
			didWork = true
		}
		if p.LoadPreviousIndex() {
			didWork = true
		}
		if !didWork {
			p.MergeIndexUpdates()
		}
		active.leave()

		if !didWork {
			select {
			case <-p.stop:
				return
			default:
			}
			p.indexerWaiter.Wait()
		}
	}
}

// queryDbWorkerLoop is the single query-DB apply worker (spec.md §5, pool
// 2): it drains do_id_map fully, then drains on_indexed fully, then waits
// for either to become non-empty again.
func (p *Pipeline) queryDbWorkerLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		active := p.enterActive()
		didWork := false
		for p.DoIdMapStage() {
			didWork = true
		}
		for p.ApplyStage() {
			didWork = true
		}
		active.leave()

		if !didWork {
			select {
			case <-p.stop:
				return
			default:
			}
			p.queryDbWaiter.Wait()
		}
	}
}

// IndexWithTuFromCodeCompletion is spec.md §4.12's real-time indexing
// shortcut: admits IndexFiles that were already produced by an out-of-scope
// code-completion parse directly, bypassing the parse stage.
func (p *Pipeline) IndexWithTuFromCodeCompletion(path string, files []*model.IndexFile) {
	p.consumer.Reset(path)
	items := make([]model.IndexDoIdMap, 0, len(files))
	for _, f := range files {
		p.cacheMgr.Put(f)
		items = append(items, model.IndexDoIdMap{Current: f, Write: true, Interactive: true})
	}
	p.doIdMap.EnqueueAll(items)
}
