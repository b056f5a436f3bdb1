// Package strand implements a reactive value-cell graph: leaf cells hold
// explicit values, derived cells compute theirs from other cells, and
// reading any cell always yields a value consistent with the current
// state of its transitive inputs.
//
// Propagation is lazy pull: a mutation marks affected cells dirty and
// cascades the mark through dependents synchronously, but recomputation
// is deferred until the next read. A derived expression recursively reads
// its own dependencies through Get, materializing any that are dirty, so
// no separate topological pass exists.
//
// Dependency lists are explicit and mandatory; the package never infers
// them from an expression. Cycles are detected at read time and reported
// as a *CycleError rather than deadlocking.
package strand
