package strand

import (
	"errors"
	"testing"
	"time"
)

func TestSelfCycle(t *testing.T) {
	c := NewLeaf(1, WithName("self"))
	c.BindExpr(func() (int, error) {
		v, err := c.Get()
		return v + 1, err
	}, []Handle{c.Handle()})

	_, err := c.Get()
	if err == nil {
		t.Fatal("expected a cycle error, got none")
	}
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected errors.Is(err, ErrCycle), got %v", err)
	}

	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if ce.CellID != c.ID() {
		t.Errorf("cycle reported against cell %d, want %d", ce.CellID, c.ID())
	}
	if ce.CellName != "self" {
		t.Errorf("cycle lost the cell name: %q", ce.CellName)
	}
}

func TestCycleClosedByRebind(t *testing.T) {
	// Construct a -> c, rebind c to depend on b, rebind b to depend on c.
	// Reading either end must fail deterministically, never hang.
	a := NewLeaf(3)
	b := NewLeaf(5)
	c, err := NewDerived(func() (int, error) {
		av, err := a.Get()
		return av + 1, err
	}, []Handle{a.Handle()})
	if err != nil {
		t.Fatalf("NewDerived: %v", err)
	}

	c.BindExpr(func() (int, error) {
		av, err := a.Get()
		if err != nil {
			return 0, err
		}
		bv, err := b.Get()
		return av + bv, err
	}, []Handle{a.Handle(), b.Handle()})

	b.BindExpr(func() (int, error) {
		cv, err := c.Get()
		return cv * 2, err
	}, []Handle{c.Handle()})

	done := make(chan error, 1)
	go func() {
		_, err := c.Get()
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCycle) {
			t.Errorf("expected cycle error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cycle read hung instead of failing")
	}
}

func TestCycleLeavesStateUntouched(t *testing.T) {
	a := NewLeaf(2)
	c, err := NewDerived(func() (int, error) {
		v, err := a.Get()
		return v * 10, err
	}, []Handle{a.Handle()})
	if err != nil {
		t.Fatalf("NewDerived: %v", err)
	}
	if got := c.MustGet(); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}

	// Close a cycle through a rebind.
	c.BindExpr(func() (int, error) {
		v, err := c.Get()
		return v + 1, err
	}, []Handle{c.Handle()})

	if _, err := c.Get(); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if !c.IsDirty() {
		t.Error("failed cycle read must not clear the dirty flag")
	}

	// Breaking the cycle recovers the cell; no garbage cache committed.
	c.BindExpr(func() (int, error) {
		v, err := a.Get()
		return v * 100, err
	}, []Handle{a.Handle()})
	if got := c.MustGet(); got != 200 {
		t.Errorf("expected 200 after breaking the cycle, got %d", got)
	}
}

func TestEagerConstructionSurfacesCycle(t *testing.T) {
	// A rebind closes a cycle; constructing a new cell on top of it must
	// fail during the eager evaluation, returning no cell.
	a := NewLeaf(1)
	a.BindExpr(func() (int, error) {
		v, err := a.Get()
		return v, err
	}, []Handle{a.Handle()})

	d, err := NewDerived(func() (int, error) {
		v, err := a.Get()
		return v + 1, err
	}, []Handle{a.Handle()})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected construction to surface the cycle, got %v", err)
	}
	if d != nil {
		t.Error("failed construction should not return a cell")
	}
}

func TestConcurrentReadersAreNotACycle(t *testing.T) {
	// Two goroutines recomputing the same dirty cell is contention,
	// not reentrancy; neither read may fail with a cycle error.
	a := NewLeaf(1)
	c, err := NewDerived(func() (int, error) {
		v, err := a.Get()
		return v * 2, err
	}, []Handle{a.Handle()})
	if err != nil {
		t.Fatalf("NewDerived: %v", err)
	}

	for i := 0; i < 100; i++ {
		a.SetValue(i)

		errs := make(chan error, 2)
		for j := 0; j < 2; j++ {
			go func() {
				_, err := c.Get()
				errs <- err
			}()
		}
		for j := 0; j < 2; j++ {
			if err := <-errs; err != nil {
				t.Fatalf("concurrent read failed: %v", err)
			}
		}
	}
}
