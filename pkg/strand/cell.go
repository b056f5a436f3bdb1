package strand

import (
	"sync"
	"sync/atomic"
	"time"
)

// Expr is the expression bound to a derived cell. It computes the cell's
// value, reading its declared dependencies through their normal accessors
// (Get), never bypassing the cache. Returning an error fails the read that
// triggered the evaluation; the cell's cache and dirty flag are left
// unchanged so a later read retries from scratch.
type Expr[T any] func() (T, error)

// binding is the tagged value a cell evaluates: either a literal payload
// or an expression over other cells.
type binding[T any] struct {
	literal T

	// expr is non-nil iff the binding is derived.
	expr Expr[T]
}

func (b *binding[T]) derived() bool { return b.expr != nil }

// Cell is a reactive value container. Its value is either a literal
// ("leaf") or the result of an expression over other cells ("derived").
// Reads are memoized: a clean cell returns its cached value; a dirty cell
// recomputes first. Mutations mark the cell and its transitive dependents
// dirty synchronously, and recomputation is deferred to the next read.
//
// All methods are safe for concurrent use. Locking is per cell: the
// binding and edge lists share a read/write lock, the cached value has
// its own lock, and the dirty flag is a lock-free atomic. No cross-cell
// lock ordering exists; a cascade acquires each cell's lock independently.
// A concurrent reader may observe a dependent's pre-mutation cache if it
// reads before the cascade reaches it; which of several concurrent writes
// wins is unspecified. Neither race corrupts memory or the graph.
type Cell[T any] struct {
	id   uint64
	name string

	// mu guards the binding and both edge lists.
	mu         sync.RWMutex
	binding    binding[T]
	deps       []Handle // owning, order preserved
	dependents []Handle // back-references, propagation only

	// cacheMu guards the cached value independently of mu, so clean
	// reads never contend with edge maintenance.
	cacheMu sync.RWMutex
	cached  T

	// committed is the generation the cached value was computed under.
	// Guarded by cacheMu; commits happen in generation order.
	committed uint64

	// dirty is the lock-free fast check for Get.
	dirty atomic.Bool

	// gen counts marks. Recomputes commit in generation order, and a
	// clear of the dirty flag is re-marked if a mark raced it, so a
	// concurrent mark is never lost under a stale cache or stale clear.
	gen atomic.Uint64
}

// NewLeaf constructs a cell bound to the literal value v.
// The cell starts clean with v cached and no edges.
func NewLeaf[T any](v T, opts ...Option) *Cell[T] {
	o := applyOptions(opts)
	c := &Cell[T]{
		id:      nextID(),
		name:    o.name,
		binding: binding[T]{literal: v},
		cached:  v,
	}
	globalCounters.cellsCreated.Add(1)
	emit(Event{Kind: EventCellCreated, CellID: c.id, CellName: c.name})
	return c
}

// NewDerived constructs a cell bound to fn over the given dependencies.
// Edges are installed and fn is evaluated once before returning, so the
// cell is never observably uninitialized. If the eager evaluation fails
// (expression error or cycle), the installed edges are torn back down and
// the error is returned with no cell.
func NewDerived[T any](fn Expr[T], deps []Handle, opts ...Option) (*Cell[T], error) {
	o := applyOptions(opts)
	c := &Cell[T]{
		id:      nextID(),
		name:    o.name,
		binding: binding[T]{expr: fn},
	}
	c.dirty.Store(true)
	c.setDependencies(deps)
	globalCounters.cellsCreated.Add(1)
	emit(Event{Kind: EventCellCreated, CellID: c.id, CellName: c.name, Derived: true})

	if _, err := c.Get(); err != nil {
		// Never leave a half-built cell receiving cascade marks.
		c.setDependencies(nil)
		return nil, err
	}
	return c, nil
}

// Get returns the cell's current value, recomputing first if the cell is
// dirty. The returned value reflects the current binding and the
// recursively up-to-date dependency subgraph. Two consecutive reads with
// no intervening mutation return identical values.
//
// A read that closes a dependency cycle returns a *CycleError; an
// expression failure is returned unmodified. In both cases the cache and
// dirty flag are untouched, so the next read retries.
func (c *Cell[T]) Get() (T, error) {
	globalCounters.reads.Add(1)
	if !c.dirty.Load() {
		globalCounters.cacheHits.Add(1)
		c.cacheMu.RLock()
		v := c.cached
		c.cacheMu.RUnlock()
		return v, nil
	}
	return c.recompute()
}

// MustGet is Get for callers that treat a failed read as fatal.
func (c *Cell[T]) MustGet() T {
	v, err := c.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// recompute evaluates the binding and commits the result.
// No cell lock is held while the expression runs, so the expression's
// recursive reads acquire each dependency's locks independently.
func (c *Cell[T]) recompute() (T, error) {
	var zero T

	if !enterCompute(c.id) {
		globalCounters.cycleErrors.Add(1)
		return zero, &CycleError{CellID: c.id, CellName: c.name}
	}
	defer exitCompute(c.id)

	start := c.gen.Load()

	c.mu.RLock()
	b := c.binding
	c.mu.RUnlock()

	globalCounters.recomputes.Add(1)
	emit(Event{Kind: EventRecomputeStarted, CellID: c.id, CellName: c.name, Derived: b.derived()})

	began := time.Now()
	var v T
	var err error
	if b.derived() {
		v, err = b.expr()
	} else {
		v = b.literal
	}
	emit(Event{
		Kind:     EventRecomputeFinished,
		CellID:   c.id,
		CellName: c.name,
		Derived:  b.derived(),
		Duration: time.Since(began),
		Err:      err,
	})
	if err != nil {
		globalCounters.recomputeFailures.Add(1)
		return zero, err
	}

	// Commit in generation order. A slow evaluation that sampled an
	// older generation must not overwrite a fresher result a concurrent
	// recompute already committed; its caller still gets the value it
	// computed, the cache just keeps the newer one.
	c.cacheMu.Lock()
	if start < c.committed {
		c.cacheMu.Unlock()
		return v, nil
	}
	c.cached = v
	c.committed = start
	c.cacheMu.Unlock()

	// Clear the flag, then re-check: a mark whose generation bump landed
	// after the binding was sampled but whose CAS saw the flag still set
	// would otherwise be swallowed by this store.
	c.dirty.Store(false)
	if c.gen.Load() != start {
		c.dirty.Store(true)
	}
	return v, nil
}

// SetValue rebinds the cell to the literal value v. If the cell was
// derived, its dependency edges are torn down first. The cell and its
// transitive dependents are marked dirty before SetValue returns.
func (c *Cell[T]) SetValue(v T) {
	c.setDependencies(nil)

	c.mu.Lock()
	c.binding = binding[T]{literal: v}
	c.mu.Unlock()

	globalCounters.rebinds.Add(1)
	emit(Event{Kind: EventRebound, CellID: c.id, CellName: c.name})
	c.MarkDirty()
}

// BindExpr rebinds the cell to fn over a new dependency list. Old edges
// are torn down and new ones installed before the binding is swapped; the
// cell then stops reacting to any dependency not in the new list. The
// expression is not evaluated until the next read.
func (c *Cell[T]) BindExpr(fn Expr[T], deps []Handle) {
	c.setDependencies(deps)

	c.mu.Lock()
	c.binding = binding[T]{expr: fn}
	c.mu.Unlock()

	globalCounters.rebinds.Add(1)
	emit(Event{Kind: EventRebound, CellID: c.id, CellName: c.name, Derived: true})
	c.MarkDirty()
}

// Peek observes a literal payload in place, without going through the
// cache. It returns false without calling fn if the cell currently holds
// a derived binding; callers must not rely on Peek succeeding for derived
// cells. fn must not call back into this cell.
func (c *Cell[T]) Peek(fn func(T)) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.binding.derived() {
		return false
	}
	fn(c.binding.literal)
	return true
}

// Mutate edits a literal payload in place. A successful mutate marks the
// cell dirty and cascades to its dependents; it returns false without
// calling fn if the cell currently holds a derived binding. fn must not
// call back into this cell.
func (c *Cell[T]) Mutate(fn func(*T)) bool {
	mutated := false
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.binding.derived() {
			return
		}
		fn(&c.binding.literal)
		mutated = true
	}()
	if mutated {
		c.MarkDirty()
	}
	return mutated
}

// Handle returns the type-erased graph reference for this cell, suitable
// for use in another cell's dependency list.
func (c *Cell[T]) Handle() Handle { return c }

// ID returns the cell's stable identity token.
// Implements the Handle interface.
func (c *Cell[T]) ID() uint64 { return c.id }

// Name returns the diagnostic name set at construction, or "".
func (c *Cell[T]) Name() string { return c.name }

// IsDirty reports whether the cache is stale.
// Implements the Handle interface.
func (c *Cell[T]) IsDirty() bool { return c.dirty.Load() }

// MarkDirty marks the cell stale and cascades through its dependents.
// The cascade completes before MarkDirty returns. A mark never un-marks;
// only a successful recompute inside Get clears the flag. Marking an
// already-dirty cell returns immediately: that subtree was already
// propagated, which bounds cascade cost to edges touched since the last
// clear. Implements the Handle interface.
func (c *Cell[T]) MarkDirty() {
	c.gen.Add(1)
	if !c.dirty.CompareAndSwap(false, true) {
		return
	}
	globalCounters.dirtyMarks.Add(1)

	// Copy before notify; no lock is held while dependents are marked.
	c.mu.RLock()
	derived := c.binding.derived()
	deps := make([]Handle, len(c.dependents))
	copy(deps, c.dependents)
	c.mu.RUnlock()

	emit(Event{Kind: EventMarkedDirty, CellID: c.id, CellName: c.name, Derived: derived})

	for _, d := range deps {
		d.MarkDirty()
	}
}

// Snapshot returns the cell's current graph state.
// Implements the Handle interface.
func (c *Cell[T]) Snapshot() CellInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := CellInfo{
		ID:    c.id,
		Name:  c.name,
		Kind:  KindLeaf,
		Dirty: c.dirty.Load(),
	}
	if c.binding.derived() {
		info.Kind = KindDerived
	}
	for _, d := range c.deps {
		info.Dependencies = append(info.Dependencies, d.ID())
	}
	for _, d := range c.dependents {
		info.Dependents = append(info.Dependents, d.ID())
	}
	return info
}
