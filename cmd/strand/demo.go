package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strand-dev/strand/pkg/strand"
)

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk a small reactive graph through mutations",
		Long: `Build a spreadsheet-style graph of cells, mutate its leaves,
and print how reads pull the changes through the graph.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

// demoGraph is the spreadsheet-style graph shared by demo and inspect:
//
//	subtotal = price * quantity
//	total    = subtotal * (1 + taxRate)
type demoGraph struct {
	price    *strand.Cell[float64]
	quantity *strand.Cell[float64]
	taxRate  *strand.Cell[float64]
	subtotal *strand.Cell[float64]
	total    *strand.Cell[float64]
}

func newDemoGraph() (*demoGraph, error) {
	g := &demoGraph{
		price:    strand.NewLeaf(9.99, strand.WithName("price")),
		quantity: strand.NewLeaf(3.0, strand.WithName("quantity")),
		taxRate:  strand.NewLeaf(0.2, strand.WithName("tax_rate")),
	}

	var err error
	g.subtotal, err = strand.NewDerived(func() (float64, error) {
		p, err := g.price.Get()
		if err != nil {
			return 0, err
		}
		q, err := g.quantity.Get()
		if err != nil {
			return 0, err
		}
		return p * q, nil
	}, []strand.Handle{g.price.Handle(), g.quantity.Handle()}, strand.WithName("subtotal"))
	if err != nil {
		return nil, err
	}

	g.total, err = strand.NewDerived(func() (float64, error) {
		s, err := g.subtotal.Get()
		if err != nil {
			return 0, err
		}
		r, err := g.taxRate.Get()
		if err != nil {
			return 0, err
		}
		return s * (1 + r), nil
	}, []strand.Handle{g.subtotal.Handle(), g.taxRate.Handle()}, strand.WithName("total"))
	if err != nil {
		return nil, err
	}
	return g, nil
}

func runDemo() error {
	g, err := newDemoGraph()
	if err != nil {
		return err
	}

	printTotal := func(label string) error {
		v, err := g.total.Get()
		if err != nil {
			return err
		}
		info("%-28s total = %.2f (dirty: subtotal=%v, total=%v)",
			label, v, g.subtotal.IsDirty(), g.total.IsDirty())
		return nil
	}

	success("graph built: total = subtotal * (1 + tax_rate), subtotal = price * quantity")
	if err := printTotal("initial read"); err != nil {
		return err
	}

	g.quantity.SetValue(10)
	info("%-28s total dirty=%v before read", "after quantity = 10:", g.total.IsDirty())
	if err := printTotal("read pulls the change"); err != nil {
		return err
	}

	g.taxRate.SetValue(0.0)
	if err := printTotal("after tax_rate = 0:"); err != nil {
		return err
	}

	// Rebind total to ignore tax entirely.
	g.total.BindExpr(func() (float64, error) {
		s, err := g.subtotal.Get()
		return s, err
	}, []strand.Handle{g.subtotal.Handle()})
	if err := printTotal("after rebinding total:"); err != nil {
		return err
	}

	// tax_rate dropped out of total's dependency list.
	g.taxRate.SetValue(0.5)
	info("%-28s total dirty=%v (tax_rate no longer propagates)",
		"after tax_rate = 0.5:", g.total.IsDirty())

	// Cycles fail deterministically instead of hanging.
	g.subtotal.BindExpr(func() (float64, error) {
		v, err := g.total.Get()
		return v, err
	}, []strand.Handle{g.total.Handle()})
	g.total.BindExpr(func() (float64, error) {
		v, err := g.subtotal.Get()
		return v, err
	}, []strand.Handle{g.subtotal.Handle()})
	if _, err := g.total.Get(); errors.Is(err, strand.ErrCycle) {
		success("cycle detected and reported: %v", err)
	} else {
		return fmt.Errorf("expected a cycle error, got %v", err)
	}

	stats := strand.ReadStats()
	info("stats: %d cells, %d reads (%d cache hits), %d recomputes, %d dirty marks",
		stats.CellsCreated, stats.Reads, stats.CacheHits, stats.Recomputes, stats.DirtyMarks)
	return nil
}
