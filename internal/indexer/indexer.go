// Package indexer implements the dependency index store: the in-memory graph
// of indexed packages, their declared dependencies, and the reverse
// dependents relation. All state lives inside a single dispatcher goroutine;
// every operation is a closure submitted over a channel and run to
// completion before the dispatcher dequeues the next one, so the store is
// never concurrently mutated and no caller ever observes dependencies and
// dependents disagree. This is the single-threaded cooperative serialization
// discipline the package protocol specification offers as an alternative to
// a shared mutex: one task owns the store, and every other goroutine talks
// to it by message-passing rather than by acquiring a lock.
package indexer

// StringSet is a set of strings backed by a map for O(1) membership checks.
type StringSet map[string]struct{}

// NewStringSet creates a new empty string set
func NewStringSet() StringSet {
	return make(StringSet)
}

// Add adds an item to the set
func (s StringSet) Add(item string) {
	s[item] = struct{}{}
}

// Remove removes an item from the set
func (s StringSet) Remove(item string) {
	delete(s, item)
}

// Contains checks if an item exists in the set
func (s StringSet) Contains(item string) bool {
	_, exists := s[item]
	return exists
}

// Len returns the number of items in the set
func (s StringSet) Len() int {
	return len(s)
}

// Copy creates a copy of the set
func (s StringSet) Copy() StringSet {
	result := NewStringSet()
	for item := range s {
		result.Add(item)
	}
	return result
}

// RemoveResult is the outcome of a remove operation.
type RemoveResult int

const (
	RemoveResultOK         RemoveResult = iota // removed
	RemoveResultNotIndexed                     // wasn't indexed; idempotent success
	RemoveResultBlocked                        // has dependents; rejected
)

// graph is the store's mutable state. It is only ever touched from inside
// the dispatcher goroutine owned by Indexer.run, so none of its methods
// need locking of their own: the dispatcher loop is the only thing that
// ever calls them, one call at a time.
type graph struct {
	indexed      StringSet            // names currently indexed
	dependencies map[string]StringSet // pkg -> its declared deps (forward edges)
	dependents   map[string]StringSet // pkg -> packages that depend on it (reverse edges)
}

func newGraph() *graph {
	return &graph{
		indexed:      NewStringSet(),
		dependencies: make(map[string]StringSet),
		dependents:   make(map[string]StringSet),
	}
}

// dropReverseEdge drops pkg from dependency's reverse-edge set, pruning the
// set entirely once it's empty so dependents never holds stale empty
// entries for packages nothing depends on anymore.
func (g *graph) dropReverseEdge(dependency string, pkg string) {
	if g.dependents[dependency] != nil {
		g.dependents[dependency].Remove(pkg)
		if g.dependents[dependency].Len() == 0 {
			delete(g.dependents, dependency)
		}
	}
}

// index adds or re-indexes pkg with the given dependencies. Returns true
// on success, false if any dependency isn't currently indexed. Duplicate
// entries in deps collapse to a set. A self-dependency (pkg appearing in
// its own deps) fails on first index, since pkg isn't indexed yet at the
// moment its own dependency list is checked; on a re-index of an
// already-indexed pkg it succeeds and pkg ends up in its own dependents
// set.
func (g *graph) index(pkg string, deps []string) bool {
	for _, dep := range deps {
		if !g.indexed.Contains(dep) {
			return false
		}
	}

	oldDeps := g.dependencies[pkg]
	if oldDeps == nil {
		oldDeps = NewStringSet()
	}

	newDeps := NewStringSet()
	for _, dep := range deps {
		newDeps.Add(dep)
	}

	// Drop reverse edges for deps this re-index no longer declares.
	for oldDep := range oldDeps {
		if !newDeps.Contains(oldDep) {
			g.dropReverseEdge(oldDep, pkg)
		}
	}

	// Add reverse edges for the (possibly unchanged) current dep set.
	for newDep := range newDeps {
		if g.dependents[newDep] == nil {
			g.dependents[newDep] = NewStringSet()
		}
		g.dependents[newDep].Add(pkg)
	}

	g.indexed.Add(pkg)
	g.dependencies[pkg] = newDeps

	return true
}

// remove removes pkg from the store. Idempotent: removing a name that
// isn't indexed returns RemoveResultNotIndexed, not an error. Rejects
// (RemoveResultBlocked) a still-depended-upon package without touching
// any state.
func (g *graph) remove(pkg string) RemoveResult {
	if !g.indexed.Contains(pkg) {
		return RemoveResultNotIndexed
	}

	if dependents := g.dependents[pkg]; dependents != nil && dependents.Len() > 0 {
		return RemoveResultBlocked
	}

	g.indexed.Remove(pkg)

	if deps := g.dependencies[pkg]; deps != nil {
		for dep := range deps {
			g.dropReverseEdge(dep, pkg)
		}
		delete(g.dependencies, pkg)
	}

	// pkg's own dependents set is empty at this point (checked above) but
	// may still exist as an allocated empty map; drop it either way.
	delete(g.dependents, pkg)

	return RemoveResultOK
}

// query reports whether pkg is currently indexed.
func (g *graph) query(pkg string) bool {
	return g.indexed.Contains(pkg)
}

// stats returns indexed package count, number of packages with a non-empty
// dependency set, and number of packages with at least one dependent.
func (g *graph) stats() (indexed, totalDeps, totalReverseDeps int) {
	for _, deps := range g.dependencies {
		if deps.Len() > 0 {
			totalDeps++
		}
	}
	return g.indexed.Len(), totalDeps, len(g.dependents)
}

// command is one unit of work submitted to the dispatcher. run executes
// against the owned graph and closes done when finished, letting the
// submitting goroutine safely read whatever its closure captured.
type command struct {
	run  func(g *graph)
	done chan struct{}
}

// Indexer is the index store's public handle. Every exported method builds
// a closure capturing its own result variables, hands it to the dispatcher
// goroutine over a channel, and blocks until that goroutine signals the
// closure ran. Commands execute strictly in the order they were enqueued,
// so the enqueue order is the linearization order the protocol requires:
// no two operations ever interleave, and nothing outside the dispatcher
// goroutine ever touches the graph directly.
type Indexer struct {
	commands chan command
}

// NewIndexer creates a new empty package indexer and starts its dispatcher
// goroutine. The goroutine runs for the lifetime of the process; nothing in
// this service's lifecycle ever needs to retire an Indexer before the
// process exits, so there is no Close.
func NewIndexer() *Indexer {
	idx := &Indexer{commands: make(chan command)}
	go idx.run()
	return idx
}

// run is the dispatcher: the single goroutine that owns the graph. Each
// command only begins once the previous one's done channel has been
// closed, which is what makes the read-modify-write sequences inside
// graph.index and graph.remove atomic without any lock.
func (idx *Indexer) run() {
	g := newGraph()
	for cmd := range idx.commands {
		cmd.run(g)
		close(cmd.done)
	}
}

// submit hands fn to the dispatcher and waits for it to finish running.
func (idx *Indexer) submit(fn func(g *graph)) {
	done := make(chan struct{})
	idx.commands <- command{run: fn, done: done}
	<-done
}

// IndexPackage adds or re-indexes pkg with the given dependencies; see
// graph.index for the full semantics.
func (idx *Indexer) IndexPackage(pkg string, deps []string) bool {
	var ok bool
	idx.submit(func(g *graph) {
		ok = g.index(pkg, deps)
	})
	return ok
}

// RemovePackage removes pkg from the index; see graph.remove for the full
// semantics.
func (idx *Indexer) RemovePackage(pkg string) RemoveResult {
	var result RemoveResult
	idx.submit(func(g *graph) {
		result = g.remove(pkg)
	})
	return result
}

// QueryPackage reports whether pkg is currently indexed. Read-only: never
// mutates store state.
func (idx *Indexer) QueryPackage(pkg string) bool {
	var found bool
	idx.submit(func(g *graph) {
		found = g.query(pkg)
	})
	return found
}

// GetStats returns a point-in-time snapshot of store size for monitoring:
// indexed package count, number of packages with a non-empty dependency
// set, and number of packages with at least one dependent.
func (idx *Indexer) GetStats() (indexed int, totalDeps int, totalReverseDeps int) {
	idx.submit(func(g *graph) {
		indexed, totalDeps, totalReverseDeps = g.stats()
	})
	return
}
