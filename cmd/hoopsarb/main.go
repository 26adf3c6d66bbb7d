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

	"github.com/alejandrodnm/hoopsarb/config"
	"github.com/alejandrodnm/hoopsarb/internal/adapters/notify"
	"github.com/alejandrodnm/hoopsarb/internal/adapters/storage"
)

const (
	reportWindow    = 24 * time.Hour
	reportTopN      = 10
	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one iteration and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Bool("report", false, "print diagnostics from the event store and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		if err := runReport(ctx, cfg); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("hoopsarb starting",
		"config", *configPath,
		"mode", cfg.Mode,
		"provider", cfg.DecisionProviderKind,
		"once", *once,
	)

	a, err := build(ctx, cfg, *configPath, *once)
	if err != nil {
		slog.Error("failed to build app", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, cfg.Metrics.Addr); err != nil {
		slog.Error("hoopsarb exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("hoopsarb stopped cleanly")
}

// run ejecuta el engine y, si hay dirección, el servidor de métricas. Cuando
// el engine termina se apaga el servidor.
func run(ctx context.Context, a *app, metricsAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return a.engine.Run(gctx)
	})

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("metrics: listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func runReport(ctx context.Context, cfg *config.Config) error {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Diagnostics(ctx, reportWindow, reportTopN)
	if err != nil {
		return err
	}
	notify.NewConsole().PrintDiagnostics(d)
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
