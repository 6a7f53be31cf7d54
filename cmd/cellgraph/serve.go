package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cellgraph-dev/cellgraph/pkg/cell"
	"github.com/cellgraph-dev/cellgraph/pkg/inspect"
	"github.com/cellgraph-dev/cellgraph/pkg/instrument"
	"github.com/cellgraph-dev/cellgraph/pkg/lens"
)

func serveCmd() *cobra.Command {
	var (
		addrFlag string
		tickFlag time.Duration
		devFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo graph with the HTTP inspector and Prometheus metrics",
		Long: `Serve runs a small reactive graph driven by a ticker and exposes it:

  /inspect/stats      engine counters
  /inspect/sources    registered sources and current values
  /inspect/ws         WebSocket stream of watch events
  /metrics            Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addrFlag, tickFlag, devFlag)
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", ":8990", "listen address")
	cmd.Flags().DurationVar(&tickFlag, "tick", time.Second, "demo graph write interval")
	cmd.Flags().BoolVar(&devFlag, "dev", false, "enable development-mode graph checks and debug logging")
	return cmd
}

func runServe(addr string, tick time.Duration, dev bool) error {
	logger := slog.Default().With("component", "serve")

	if dev {
		cell.DevMode = true
		cell.DebugMode = true
	}
	cell.SetInstrumentation(instrument.Prometheus())

	// Demo graph: a ticking counter, a derived parity, and a cursor into a
	// composite status value.
	count := cell.NewCell(0).WithLabel("count")
	parity := cell.NewExpr(func() string {
		if count.Get()%2 == 0 {
			return "even"
		}
		return "odd"
	}, cell.WithLabel[string]("parity"))

	started := time.Now()
	status := cell.NewCell[any](map[string]any{
		"last_tick": "",
		"uptime_s":  0,
	})
	lastTick := lens.Cursor(status, "last_tick")

	insp := inspect.New(inspect.WithLogger(logger.With("component", "inspect")))
	insp.Register("count", count)
	insp.Register("parity", parity)
	insp.Register("status", status)
	insp.Register("last_tick", lastTick)

	// Watchers keep the derived nodes alive and give the log a pulse.
	parity.Watch("serve", func(key any, src *cell.Expr[string], old, new string) {
		logger.Debug("parity changed", "old", old, "new", new)
	})
	lastTick.Watch("serve", func(key any, src *cell.Expr[any], old, new any) {})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// All graph writes happen on this goroutine.
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cell.TxNamed("tick", func() {
					count.Update(func(v int) int { return v + 1 })
					lastTick.Reset(now.UTC().Format(time.RFC3339))
					status.Set(updateUptime(status.Peek(), int(time.Since(started).Seconds())))
				})
			}
		}
	}()

	r := chi.NewRouter()
	r.Mount("/inspect", insp.Handler())
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "tick", tick.String(), "dev", dev)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// updateUptime rewrites the uptime key while preserving the rest of the
// status map.
func updateUptime(v any, seconds int) map[string]any {
	old, _ := v.(map[string]any)
	next := make(map[string]any, len(old))
	for k, val := range old {
		next[k] = val
	}
	next["uptime_s"] = seconds
	return next
}
