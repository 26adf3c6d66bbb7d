package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/hoopsarb/config"
	"github.com/alejandrodnm/hoopsarb/internal/adapters/executor"
	"github.com/alejandrodnm/hoopsarb/internal/adapters/feeds"
	"github.com/alejandrodnm/hoopsarb/internal/adapters/notify"
	"github.com/alejandrodnm/hoopsarb/internal/adapters/oracle"
	"github.com/alejandrodnm/hoopsarb/internal/adapters/storage"
	"github.com/alejandrodnm/hoopsarb/internal/application/delay"
	"github.com/alejandrodnm/hoopsarb/internal/application/engine"
	"github.com/alejandrodnm/hoopsarb/internal/application/provider"
	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// app son las piezas construidas a partir de la configuración.
type app struct {
	engine  *engine.Engine
	metrics *notify.Metrics
	closers []func() error
}

// Close libera en orden inverso lo que build abrió.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("shutdown: close failed", "err", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, configPath string, once bool) (*app, error) {
	a := &app{metrics: notify.NewMetrics()}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("build: storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	console := notify.NewConsole()
	bus := notify.NewBus(console, store, a.metrics)

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.TelegramEvents())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("build: %w", err)
		}
		bus.Add(tg)
		a.closers = append(a.closers, tg.Close)
	}

	if cfg.Redis.Addr != "" {
		rs, err := notify.NewRedisStream(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Stream)
		if err != nil {
			// el stream es opcional: sin Redis el motor sigue
			slog.Warn("redis stream disabled", "err", err)
		} else {
			bus.Add(rs)
			a.closers = append(a.closers, rs.Close)
		}
	}

	var policy ports.PolicySource = config.NewReloader(configPath, cfg)
	if once {
		policy = onceSource{policy}
	}
	p := policy.Current()

	trans, bet := buildFeeds(cfg)

	estimator := delay.New(p.DelayLearning, storage.NewDelayFile(p.DelayLearning.ModelPath))

	a.engine = engine.New(engine.Deps{
		Transmission: trans,
		Bet:          bet,
		Provider:     buildProvider(cfg, p),
		Executor:     buildExecutor(cfg),
		Policy:       policy,
		Sink:         bus,
		Outcomes:     store,
		Estimator:    estimator,
		Reporter:     console,
	})
	return a, nil
}

func buildFeeds(cfg *config.Config) (ports.ScoreSource, ports.ScoreSource) {
	if cfg.Mode == config.ModeSimulated {
		return feeds.NewSimulated(domain.SourceTransmission, config.SimulatedScores(domain.SourceTransmission, cfg.Feeds.Simulated.Transmission)),
			feeds.NewSimulated(domain.SourceBet, config.SimulatedScores(domain.SourceBet, cfg.Feeds.Simulated.Bet))
	}
	return buildFeed(domain.SourceTransmission, cfg.Feeds.Transmission), buildFeed(domain.SourceBet, cfg.Feeds.Bet)
}

func buildFeed(source string, f config.FeedConfig) ports.ScoreSource {
	timeout := secs(f.TimeoutSeconds)
	if f.Kind == config.FeedWS {
		return feeds.NewWSSource(feeds.WSConfig{URL: f.URL, Source: source, Timeout: timeout, Headers: f.Headers})
	}
	return feeds.NewHTTPSource(feeds.HTTPConfig{
		URL:        f.URL,
		Source:     source,
		Timeout:    timeout,
		RatePerSec: f.RatePerSec,
		MaxRetries: f.MaxRetries,
		Headers:    f.Headers,
	})
}

// buildProvider registra los providers disponibles y envuelve el elegido con
// timeout y recover.
func buildProvider(cfg *config.Config, p domain.PolicyConfig) ports.DecisionProvider {
	reg := provider.NewRegistry()
	if cfg.Oracle.URL != "" {
		reg.Register(oracle.NewClient(oracle.Config{
			URL:             cfg.Oracle.URL,
			APIKey:          cfg.Oracle.APIKey,
			Timeout:         secs(cfg.Oracle.TimeoutSeconds),
			MaxFailures:     cfg.Oracle.MaxFailures,
			BreakerCooldown: secs(cfg.Oracle.BreakerCooldownSeconds),
		}))
	}
	slog.Info("decision providers", "available", reg.Names(), "selected", p.DecisionProviderKind)
	return provider.NewGuard(reg.Resolve(p.DecisionProviderKind), p.ProviderTimeout)
}

func buildExecutor(cfg *config.Config) ports.Executor {
	if cfg.Executor.Kind == config.ExecutorHTTP {
		return executor.NewWebhook(cfg.Executor.URL, cfg.Executor.Secret, secs(cfg.Executor.TimeoutSeconds))
	}
	return executor.NewManual()
}

// onceSource limita la sesión a una iteración sin tocar el archivo.
type onceSource struct {
	ports.PolicySource
}

func (o onceSource) Current() domain.PolicyConfig {
	p := o.PolicySource.Current()
	p.MaxIterations = 1
	return p
}

func (o onceSource) Reload() (domain.PolicyConfig, error) {
	p, err := o.PolicySource.Reload()
	p.MaxIterations = 1
	return p, err
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
