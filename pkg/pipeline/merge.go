package pipeline

// MergeIndexUpdates is spec.md §4.9's opportunistic batching: dequeue one
// item as root, repeatedly try-dequeue another and merge it into root; once
// the queue is exhausted, re-enqueue root and return. It runs on the indexer
// pool, and only as a fallback when a worker cycle would otherwise have done
// no work, so it never starves the apply stage of progress.
//
// Returns whether it merged at least one pair, matching the driver's
// did-work bookkeeping.
func (p *Pipeline) MergeIndexUpdates() bool {
	root, ok := p.onIndexed.TryDequeue()
	if !ok {
		return false
	}

	merged := false
	for {
		other, ok := p.onIndexed.TryDequeue()
		if !ok {
			break
		}
		root.Update.Merge(other.Update)
		merged = true
	}

	p.onIndexed.Enqueue(root)
	return merged
}
