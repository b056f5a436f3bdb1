package strand

import (
	"runtime"
	"sync"
)

// activeComputes tracks, per goroutine, the set of cell IDs currently
// mid-recompute on that goroutine's call stack. A recursive read that
// re-enters a cell already in the set is a true dependency cycle.
//
// Each goroutine only ever touches its own set, so the inner map needs
// no locking; sync.Map handles the cross-goroutine key space.
var activeComputes sync.Map

// goroutineID returns a unique identifier for the current goroutine.
// This parses the runtime stack header and is an implementation detail.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> ".
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// enterCompute records that the current goroutine is recomputing the cell
// with the given ID. It returns false if the cell is already mid-recompute
// on this goroutine's stack, i.e. the read closed a cycle.
func enterCompute(id uint64) bool {
	gid := goroutineID()

	var set map[uint64]struct{}
	if v, ok := activeComputes.Load(gid); ok {
		set = v.(map[uint64]struct{})
	} else {
		set = make(map[uint64]struct{}, 4)
		activeComputes.Store(gid, set)
	}

	if _, ok := set[id]; ok {
		return false
	}
	set[id] = struct{}{}
	return true
}

// exitCompute removes the cell from the current goroutine's recompute set.
// Must be paired with a successful enterCompute.
func exitCompute(id uint64) {
	gid := goroutineID()
	v, ok := activeComputes.Load(gid)
	if !ok {
		return
	}
	set := v.(map[uint64]struct{})
	delete(set, id)
	if len(set) == 0 {
		activeComputes.Delete(gid)
	}
}
