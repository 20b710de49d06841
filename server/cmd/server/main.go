package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/subtrack/subtrack/server/internal/api"
	"github.com/subtrack/subtrack/server/internal/config"
	"github.com/subtrack/subtrack/server/internal/metrics"
	"github.com/subtrack/subtrack/server/internal/reaper"
	"github.com/subtrack/subtrack/server/internal/snapshot"
	"github.com/subtrack/subtrack/server/internal/store"
	"github.com/subtrack/subtrack/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; built-in defaults are used when empty")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("subtrack-server starting", "config", *configPath)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	sc := cfg.Server
	level.Set(sc.Level())

	slog.Info("config loaded",
		"addr", sc.Addr(),
		"backend", sc.Storage.Backend,
		"location", sc.Clock.Location,
		"reaper_interval", sc.Reaper.Interval,
	)

	if err := run(*configPath, sc, level); err != nil {
		slog.Error("subtrack-server stopped", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, sc config.ServerConfig, level *slog.LevelVar) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := sc.Clock.Load()
	if err != nil {
		return err
	}

	backend, err := snapshot.Open(ctx, sc.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	st, err := store.Open(ctx, backend,
		store.WithLocation(loc),
		store.WithTimeout(sc.Storage.Timeout),
	)
	if err != nil {
		return err
	}
	slog.Info("store loaded", "entries", st.Len())

	m := metrics.New(st)

	// Reaper sweeps expired UIDs regardless of request traffic.
	rp := reaper.New(st, sc.Reaper.Interval, reaper.WithObserver(m))

	// WebSocket hub pushes a UID's countdown to subscribers every tick.
	hub := ws.New(st, sc.Stream.Interval)

	mux := http.NewServeMux()
	mux.Handle("/", api.New(st, rp, m))
	mux.Handle("/metrics", m)
	mux.Handle(ws.Prefix, hub)

	httpSrv := &http.Server{
		Addr:              sc.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rp.Run(ctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, configPath, func(next *config.Config) {
				level.Set(next.Server.Level())
				rp.SetInterval(next.Server.Reaper.Interval)
			})
		})
	}

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", sc.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("subtrack-server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
