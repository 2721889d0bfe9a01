// buoyd is the buoy telemetry ingestion daemon.
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

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/seaward/buoyd/internal/loader"
	"github.com/seaward/buoyd/internal/logging"
	"github.com/seaward/buoyd/internal/metrics"
	"github.com/seaward/buoyd/internal/queue"
	"github.com/seaward/buoyd/internal/server"
	"github.com/seaward/buoyd/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	backend := flag.String("backend", "", "store backend: memory, duckdb, series (overrides config)")
	dbPath := flag.String("db", "", "duckdb database path (overrides config)")
	redisAddr := flag.String("redis", "", "redis address (overrides config)")
	noQueue := flag.Bool("no-queue", false, "disable the queue consumer")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			slog.Error("load config", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if *dbPath != "" {
		cfg.Store.DuckDB.Path = *dbPath
	}
	if *redisAddr != "" {
		cfg.Queue.Redis.Addr = *redisAddr
	}
	if *noQueue {
		cfg.Queue.Enabled = false
	}

	logging.Init(logLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("main")
	log.Info("buoyd starting", "version", Version, "backend", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mtx := metrics.New(prometheus.DefaultRegisterer)

	// Store
	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	g, ctx := errgroup.WithContext(ctx)

	// Queue consumer
	if cfg.Queue.Enabled {
		redisQueue, err := queue.NewRedisQueue(ctx, queue.RedisConfig{
			Addr:     cfg.Queue.Redis.Addr,
			Stream:   cfg.Queue.Redis.Stream,
			Group:    cfg.Queue.Redis.Group,
			Consumer: cfg.Queue.Redis.Consumer,
		})
		if err != nil {
			log.Error("connect queue", "addr", cfg.Queue.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer redisQueue.Close()

		consumer := queue.New(redisQueue, st, queue.Config{
			ReceiveMax:     cfg.Queue.ReceiveMax,
			ReceiveWait:    cfg.Queue.ReceiveWait,
			BaseSleep:      cfg.Queue.BaseSleep,
			InitialBackoff: cfg.Queue.InitialBackoff,
			MaxBackoff:     cfg.Queue.MaxBackoff,
			ErrorPause:     cfg.Queue.ErrorPause,
		}, mtx)

		g.Go(func() error {
			err := consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Info("queue consumer disabled")
	}

	// HTTP API
	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.New(st, mtx).Handler(),
	}

	g.Go(func() error {
		log.Info("listening", "addr", cfg.Server.Listen)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("daemon error", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
