package strand

// Handle is a type-erased, identity-comparable reference to a cell.
// It exposes only graph-maintenance operations, so dependency and
// dependent lists can hold cells of heterogeneous value types.
//
// A Handle stored in a dependency list is a shared-ownership reference:
// it keeps the referenced cell reachable for as long as the edge exists.
// Dependent edges hold the same interface values but are semantically
// back-references used only for dirty propagation; Go's tracing GC
// collects mutually-referencing cells, so they never leak the way a
// reference-counted design would.
type Handle interface {
	// ID returns the cell's stable identity token.
	// It is fixed at creation and unaffected by rebinding.
	ID() uint64

	// IsDirty reports whether the cell's cache is stale.
	IsDirty() bool

	// MarkDirty marks the cell stale and cascades the mark through its
	// dependents. Marking an already-dirty cell is a no-op: the subtree
	// was already propagated when the cell first became dirty.
	MarkDirty()

	// Snapshot returns the cell's current graph state for inspection.
	Snapshot() CellInfo

	// addDependent registers a back-reference for dirty propagation.
	// Deduplicates by ID.
	addDependent(dep Handle)

	// removeDependent removes the back-reference with the given ID.
	// Comparison is by identity token, never by value equality.
	removeDependent(id uint64)
}

// CellInfo is a point-in-time view of a cell's place in the graph.
type CellInfo struct {
	ID           uint64   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Kind         string   `json:"kind"`
	Dirty        bool     `json:"dirty"`
	Dependencies []uint64 `json:"dependencies,omitempty"`
	Dependents   []uint64 `json:"dependents,omitempty"`
}

// Cell kinds reported by Snapshot.
const (
	KindLeaf    = "leaf"
	KindDerived = "derived"
)
