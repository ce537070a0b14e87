package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/sertdev/reachd/internal/api"
	"github.com/sertdev/reachd/internal/config"
	"github.com/sertdev/reachd/internal/events"
	"github.com/sertdev/reachd/internal/logging"
	"github.com/sertdev/reachd/internal/metrics"
	"github.com/sertdev/reachd/internal/netwatch"
	"github.com/sertdev/reachd/internal/probe"
	"github.com/sertdev/reachd/internal/ratelimit"
	"github.com/sertdev/reachd/internal/server"
	"github.com/sertdev/reachd/internal/slogger"
	"github.com/sertdev/reachd/internal/state"
	"github.com/sertdev/reachd/internal/store"
	"github.com/sertdev/reachd/internal/supervisor"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Validate config
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	// 3. Setup structured logging
	slogger.Setup(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Event bus shared by every component
	clk := clock.New()
	bus := events.NewBus(clk)

	// 5. Interface source
	var source netwatch.Source
	if cfg.InterfaceMode == config.InterfaceModeAlwaysOnline {
		source = netwatch.NewStaticSource(true)
	} else {
		source = netwatch.NewPollingSource(netwatch.PollingOpts{
			Interval: time.Duration(cfg.InterfacePollMS) * time.Millisecond,
			Clock:    clk,
		})
	}

	// 6. Probe
	prb := probe.New(bus, probe.NewHTTPProber(nil), probe.Opts{
		Floor:   time.Duration(cfg.ProbeFloorMS) * time.Millisecond,
		Timeout: time.Duration(cfg.ProbeTimeoutMS) * time.Millisecond,
		Clock:   clk,
	})

	// 7. Metrics (if enabled)
	var m *metrics.Metrics
	var metricsMiddleware func(http.Handler) http.Handler
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		m = metrics.New()
		metricsMiddleware = metrics.Middleware(m)
		metricsHandler = m.Handler()
	}

	// 8. Supervisor
	supOpts := supervisor.Opts{Clock: clk}
	if m != nil {
		supOpts.OnSchedulerStart = func(string) { m.SchedulerStartsTotal.Inc() }
	}
	sup := supervisor.New(bus, source, prb, cfg.Policy(), supOpts)

	// 9. Snapshot store
	snapshots := state.NewStore()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	snapSub := bus.Subscribe()
	g.Go(func() error { return snapshots.Run(gctx, snapSub) })
	if m != nil {
		observer := metrics.NewObserver(m)
		obsSub := bus.Subscribe()
		g.Go(func() error { return observer.Run(gctx, obsSub) })
	}

	// 10. Journal (if a database is configured)
	deps := api.Deps{
		Monitor:         sup,
		Snapshots:       snapshots,
		DefaultEndpoint: cfg.Endpoint,
	}
	serverOpts := &server.Opts{
		MetricsMiddleware: metricsMiddleware,
		MetricsHandler:    metricsHandler,
	}
	if cfg.JournalEnabled() {
		pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, cfg.MaxDBConns, cfg.MinDBConns)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer pool.Close()

		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}

		journal := logging.NewAsyncJournal(st, cfg.JournalBufferSize)
		defer journal.Close()
		if m != nil {
			journal.SetDroppedCounter(m.JournalDroppedTotal)
		}
		journalSub := bus.Subscribe()
		g.Go(func() error { return journal.Run(gctx, journalSub) })

		cleaner := logging.NewJournalCleaner(st, cfg.JournalRetentionDays)
		defer cleaner.Close()

		deps.Journal = st
		serverOpts.DB = pool
	}

	// 11. Control rate limiter (if configured)
	if cfg.ControlRateLimitRPS > 0 {
		burst := cfg.ControlRateLimitBurst
		if burst <= 0 {
			burst = int(cfg.ControlRateLimitRPS * 2) // default burst = 2x RPS
		}
		serverOpts.RateLimiter = ratelimit.NewLimiter(cfg.ControlRateLimitRPS, burst, ratelimit.Opts{Clock: clk})
		defer serverOpts.RateLimiter.Close()
	}

	// 12. Build the server router
	router := server.New(cfg, api.NewRouter(deps), serverOpts)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g.Go(func() error {
		log.Printf("reachd listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.AutoStart {
		if err := sup.Begin(cfg.Endpoint); err != nil {
			log.Fatalf("failed to begin monitoring: %v", err)
		}
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("reachd stopped with error", "error", err)
	}
	bus.Close()
	log.Println("server stopped")
}
