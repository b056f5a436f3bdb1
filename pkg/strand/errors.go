package strand

import (
	"errors"
	"fmt"
)

// ErrCycle is the sentinel for dependency-cycle failures. Use
// errors.Is(err, strand.ErrCycle) to detect them regardless of which
// cell the cycle was reported against.
var ErrCycle = errors.New("strand: dependency cycle detected")

// CycleError is returned when recomputing a cell transitively requires
// its own not-yet-committed value. It is surfaced synchronously to the
// caller whose read or construction entered the cycle; the offending
// cell's prior cache and dirty state are left unchanged.
type CycleError struct {
	// CellID is the identity of the cell whose recompute was re-entered.
	CellID uint64

	// CellName is the cell's optional name, if one was set.
	CellName string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if e.CellName != "" {
		return fmt.Sprintf("strand: dependency cycle detected at cell %q (id %d)", e.CellName, e.CellID)
	}
	return fmt.Sprintf("strand: dependency cycle detected at cell %d", e.CellID)
}

// Unwrap returns ErrCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}
