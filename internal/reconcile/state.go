package reconcile

import (
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"strmsync/internal/catalog"
	"strmsync/internal/library"
	"strmsync/internal/progress"
)

// pathSet is the run-wide registry of pointer files that must survive the
// orphan sweep. Movie and series passes add to it concurrently.
type pathSet struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

func newPathSet() *pathSet {
	return &pathSet{paths: make(map[string]struct{})}
}

func (s *pathSet) add(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.paths[filepath.Clean(p)] = struct{}{}
	}
}

func (s *pathSet) has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paths[filepath.Clean(path)]
	return ok
}

// claimSet hands out pointer paths so two provider items never write the
// same file in one run.
type claimSet struct {
	mu     sync.Mutex
	owners map[string]string
}

func newClaimSet() *claimSet {
	return &claimSet{owners: make(map[string]string)}
}

// claim reserves path for owner. It reports false when another owner holds it.
func (c *claimSet) claim(path, owner string) bool {
	path = filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.owners[path]; ok {
		return current == owner
	}
	c.owners[path] = owner
	return true
}

// tally accumulates outcomes for one library level.
type tally struct {
	created atomic.Int64
	updated atomic.Int64
	skipped atomic.Int64
	deleted atomic.Int64
}

func (t *tally) record(o library.Outcome) {
	switch o {
	case library.Created:
		t.created.Add(1)
	case library.Updated:
		t.updated.Add(1)
	default:
		t.skipped.Add(1)
	}
}

func (t *tally) counts() progress.Counts {
	return progress.Counts{
		Created: int(t.created.Load()),
		Updated: int(t.updated.Load()),
		Skipped: int(t.skipped.Load()),
		Deleted: int(t.deleted.Load()),
	}
}

// mergeOutcome folds per-file outcomes into one per logical item: any
// creation wins, then any update.
func mergeOutcome(a, b library.Outcome) library.Outcome {
	switch {
	case a == library.Created || b == library.Created:
		return library.Created
	case a == library.Updated || b == library.Updated:
		return library.Updated
	default:
		return library.Unchanged
	}
}

// seenRecord remembers an item from an earlier batch for duplicate
// suppression.
type seenRecord struct {
	categories []int
	parents    []string
	movie      catalog.Movie
	series     catalog.Series
}

// registry tracks every ID listed so far in the run.
type registry struct {
	mu    sync.Mutex
	items map[int]*seenRecord
}

func newRegistry() *registry {
	return &registry{items: make(map[int]*seenRecord)}
}

func (g *registry) get(id int) (*seenRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.items[id]
	return rec, ok
}

func (g *registry) put(id int, rec *seenRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items[id] = rec
}

// mergeCategories adds ids to the record and returns the ones it lacked.
func (g *registry) mergeCategories(rec *seenRecord, ids []int) []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	var added []int
	for _, id := range ids {
		if !slices.Contains(rec.categories, id) {
			rec.categories = append(rec.categories, id)
			added = append(added, id)
		}
	}
	return added
}

// addParents records newly written parents and returns those not seen yet.
func (g *registry) addParents(rec *seenRecord, parents []string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var added []string
	for _, p := range parents {
		if !slices.Contains(rec.parents, p) {
			rec.parents = append(rec.parents, p)
			added = append(added, p)
		}
	}
	return added
}

func (g *registry) ids() map[int]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[int]struct{}, len(g.items))
	for id := range g.items {
		out[id] = struct{}{}
	}
	return out
}
