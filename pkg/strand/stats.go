package strand

import "sync/atomic"

// counters holds the process-wide operation counters.
// All fields are updated with atomic operations on the hot paths.
type counters struct {
	cellsCreated      atomic.Uint64
	reads             atomic.Uint64
	cacheHits         atomic.Uint64
	recomputes        atomic.Uint64
	recomputeFailures atomic.Uint64
	cycleErrors       atomic.Uint64
	dirtyMarks        atomic.Uint64
	rebinds           atomic.Uint64
}

var globalCounters counters

// Stats is a point-in-time snapshot of the process-wide counters.
type Stats struct {
	// CellsCreated is the total number of cells constructed.
	CellsCreated uint64

	// Reads is the total number of Get calls.
	Reads uint64

	// CacheHits is the number of reads served from a clean cache.
	CacheHits uint64

	// Recomputes is the number of binding evaluations, successful or not.
	Recomputes uint64

	// RecomputeFailures is the number of evaluations that returned an error.
	RecomputeFailures uint64

	// CycleErrors is the number of reads that detected a dependency cycle.
	CycleErrors uint64

	// DirtyMarks is the number of cells transitioned from clean to dirty.
	// Marks absorbed by the already-dirty early return are not counted.
	DirtyMarks uint64

	// Rebinds is the number of SetValue/BindExpr calls on existing cells.
	Rebinds uint64
}

// ReadStats returns a snapshot of the process-wide counters.
// The fields are read individually, so a snapshot taken while other
// goroutines are active is internally approximate but never torn.
func ReadStats() Stats {
	return Stats{
		CellsCreated:      globalCounters.cellsCreated.Load(),
		Reads:             globalCounters.reads.Load(),
		CacheHits:         globalCounters.cacheHits.Load(),
		Recomputes:        globalCounters.recomputes.Load(),
		RecomputeFailures: globalCounters.recomputeFailures.Load(),
		CycleErrors:       globalCounters.cycleErrors.Load(),
		DirtyMarks:        globalCounters.dirtyMarks.Load(),
		Rebinds:           globalCounters.rebinds.Load(),
	}
}
