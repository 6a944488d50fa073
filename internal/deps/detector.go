package deps

import "sort"

// Changes is the result of diffing the current source state against the
// persisted baseline.
type Changes struct {
	// Paths changed since the baseline: absent from the previous mapping,
	// or present with a different digest. Deletions are not included here;
	// they drive stale-output cleanup, not dependency dirtiness.
	Paths []string

	// Dirty is true for a category iff its watched set intersects Paths.
	Dirty map[Category]bool
}

// Detect diffs two fingerprint mappings and maps the changed paths through
// the graph onto per-category dirty flags. Output is deterministic for the
// same inputs: Paths is sorted.
func Detect(g *Graph, previous, current map[string]string) Changes {
	var changed []string
	for path, digest := range current {
		prev, ok := previous[path]
		if !ok || prev != digest {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)

	dirty := make(map[Category]bool, len(g.order))
	for _, cat := range g.Categories() {
		dirty[cat] = g.IsDirty(cat, changed)
	}

	return Changes{Paths: changed, Dirty: dirty}
}

// Deleted returns the paths present in previous but absent from current,
// sorted. The orchestrator uses it to schedule stale-output cleanup.
func Deleted(previous, current map[string]string) []string {
	var gone []string
	for path := range previous {
		if _, ok := current[path]; !ok {
			gone = append(gone, path)
		}
	}
	sort.Strings(gone)
	return gone
}
