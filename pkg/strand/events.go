package strand

import (
	"sync/atomic"
	"time"
)

// EventKind identifies what happened to a cell.
type EventKind string

const (
	// EventCellCreated fires once per constructed cell.
	EventCellCreated EventKind = "cell_created"

	// EventMarkedDirty fires when a cell transitions from clean to dirty,
	// including cascade marks reaching it through a dependent edge.
	EventMarkedDirty EventKind = "marked_dirty"

	// EventRecomputeStarted fires when a read begins evaluating a binding.
	EventRecomputeStarted EventKind = "recompute_started"

	// EventRecomputeFinished fires when the evaluation returns.
	// Duration is set; Err is non-nil if the evaluation failed.
	EventRecomputeFinished EventKind = "recompute_finished"

	// EventRebound fires when a cell's binding is replaced via
	// SetValue or BindExpr.
	EventRebound EventKind = "rebound"
)

// Event describes a single cell operation for observability consumers
// (tracing, the inspect server). Events are emitted synchronously on the
// goroutine performing the operation.
type Event struct {
	Kind     EventKind
	CellID   uint64
	CellName string
	Derived  bool

	// Duration of the evaluation; set for EventRecomputeFinished only.
	Duration time.Duration

	// Err is the evaluation failure; set for EventRecomputeFinished only.
	Err error
}

// eventHook holds the process-wide event hook. nil means disabled;
// the hot paths then pay a single atomic load.
var eventHook atomic.Pointer[func(Event)]

// SetEventHook installs fn as the process-wide event hook. Passing nil
// disables event emission. The hook runs synchronously on the operating
// goroutine and must not call back into the cells it observes.
func SetEventHook(fn func(Event)) {
	if fn == nil {
		eventHook.Store(nil)
		return
	}
	eventHook.Store(&fn)
}

// CombineHooks fans a single event out to every given hook, in order.
// Useful for attaching tracing and the inspect server at the same time.
func CombineHooks(hooks ...func(Event)) func(Event) {
	return func(ev Event) {
		for _, h := range hooks {
			if h != nil {
				h(ev)
			}
		}
	}
}

// emit delivers ev to the installed hook, if any.
func emit(ev Event) {
	if h := eventHook.Load(); h != nil {
		(*h)(ev)
	}
}
