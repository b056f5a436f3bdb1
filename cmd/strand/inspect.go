package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strand-dev/strand/internal/config"
	"github.com/strand-dev/strand/pkg/inspect"
	"github.com/strand-dev/strand/pkg/metrics"
	"github.com/strand-dev/strand/pkg/strand"
	"github.com/strand-dev/strand/pkg/tracing"
)

func inspectCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve the demo graph over HTTP for live inspection",
		Long: `Run the demo graph with a background mutator and serve it on the
inspect server:

  GET /cells        registered cells with edges and dirty flags
  GET /cells/{id}   a single cell
  GET /stats        core operation counters
  GET /metrics      Prometheus metrics
  GET /events       WebSocket stream of graph events

Examples:
  strand inspect
  strand inspect --addr=localhost:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from strand.json)")
	return cmd
}

func runInspect(addr string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Inspect.Addr = addr
	}

	g, err := newDemoGraph()
	if err != nil {
		return err
	}

	if _, err := metrics.Register(nil,
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithSubsystem(cfg.Metrics.Subsystem),
	); err != nil {
		return err
	}

	server := inspect.New(&inspect.Config{Addr: cfg.Inspect.Addr})
	server.Register("price", g.price.Handle())
	server.Register("quantity", g.quantity.Handle())
	server.Register("tax_rate", g.taxRate.Handle())
	server.Register("subtotal", g.subtotal.Handle())
	server.Register("total", g.total.Handle())

	strand.SetEventHook(strand.CombineHooks(
		tracing.NewHook(),
		server.EventHook(),
	))
	defer strand.SetEventHook(nil)

	// Keep the graph moving so /events has something to show.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		qty := 1.0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				qty++
				g.quantity.SetValue(qty)
				g.total.MustGet()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	success("inspect server on http://%s", cfg.Inspect.Addr)
	info("try: curl http://%s/cells", cfg.Inspect.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(stop)
		return err
	case <-sigCh:
		close(stop)
		info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
