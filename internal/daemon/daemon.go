// Package daemon runs watch-and-serve mode: filesystem watching, debounced
// rebuilds, a preview HTTP server with livereload, and optional periodic
// full rebuilds.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/blogbuilder/internal/builder"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/history"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// Daemon owns the watch-mode wiring around the builder.
type Daemon struct {
	cfg     *config.Config
	builder *builder.Builder
	hub     *LiveReloadHub
	reg     *prom.Registry
	events  history.Store
}

// New wires up a daemon: builder, optional Prometheus registry, optional
// build history store.
func New(cfg *config.Config) (*Daemon, error) {
	d := &Daemon{
		cfg:     cfg,
		builder: builder.New(cfg),
		hub:     NewLiveReloadHub(),
		events:  history.NoopStore{},
	}

	if cfg.Serve.Metrics {
		d.reg = prom.NewRegistry()
		d.builder.WithRecorder(metrics.NewPrometheusRecorder(d.reg))
	}
	if cfg.Paths.History != "" {
		store, err := history.NewSQLiteStore(cfg.Paths.History)
		if err != nil {
			return nil, err
		}
		d.events = store
		d.builder.WithHistory(store)
	}
	return d, nil
}

// Run builds once, then serves and watches until the context ends.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.events.Close()

	build := func(ctx context.Context) {
		res, err := d.builder.Run(ctx)
		if err != nil {
			slog.Error("Build failed", "error", err)
			return
		}
		if res.Outcome != "noop" {
			d.hub.Broadcast(res.BuildID)
		}
	}

	// Initial full pass so the preview never serves an empty tree.
	build(ctx)

	deb, err := NewDebouncer(DebouncerConfig{
		QuietWindow: d.cfg.Serve.Debounce,
		MaxDelay:    d.cfg.Serve.MaxDelay,
	})
	if err != nil {
		return err
	}

	watcher, err := NewWatcher(d.cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              d.cfg.Serve.Addr,
		Handler:           NewServer(d.cfg, d.hub, d.reg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var scheduler gocron.Scheduler
	if d.cfg.Serve.RebuildInterval > 0 {
		scheduler, err = gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		if _, err := scheduler.NewJob(
			gocron.DurationJob(d.cfg.Serve.RebuildInterval),
			gocron.NewTask(deb.Request),
			gocron.WithName("periodic-rebuild"),
		); err != nil {
			return fmt.Errorf("schedule periodic rebuild: %w", err)
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()
	}

	slog.Info("Serving site", "addr", d.cfg.Serve.Addr, "metrics", d.reg != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deb.Run(gctx, build)
		return nil
	})
	g.Go(func() error {
		return watcher.Run(gctx, func(string) { deb.Request() })
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
