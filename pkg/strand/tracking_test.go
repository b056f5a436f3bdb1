package strand

import (
	"sync"
	"testing"
)

func TestGoroutineIDStableWithinGoroutine(t *testing.T) {
	if goroutineID() != goroutineID() {
		t.Error("goroutineID not stable within one goroutine")
	}
}

func TestGoroutineIDDistinctAcrossGoroutines(t *testing.T) {
	main := goroutineID()

	ch := make(chan uint64, 1)
	go func() { ch <- goroutineID() }()

	if other := <-ch; other == main {
		t.Error("two goroutines reported the same ID")
	}
}

func TestEnterComputeDetectsReentry(t *testing.T) {
	const id = 1 << 40 // avoid colliding with real cell IDs

	if !enterCompute(id) {
		t.Fatal("first enter should succeed")
	}
	if enterCompute(id) {
		t.Error("reentry should be rejected")
	}
	if !enterCompute(id + 1) {
		t.Error("a different cell should be allowed on the same stack")
	}
	exitCompute(id + 1)
	exitCompute(id)

	if !enterCompute(id) {
		t.Error("enter should succeed again after exit")
	}
	exitCompute(id)
}

func TestEnterComputeIsPerGoroutine(t *testing.T) {
	const id = 1 << 41

	if !enterCompute(id) {
		t.Fatal("first enter should succeed")
	}
	defer exitCompute(id)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Another goroutine computing the same cell is concurrency,
		// not a cycle.
		if !enterCompute(id) {
			t.Error("concurrent goroutine wrongly treated as reentry")
			return
		}
		exitCompute(id)
	}()
	wg.Wait()
}
