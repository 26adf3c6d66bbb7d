// Package engine implementa el scheduler: el loop que en cada tick compara
// los dos feeds, decide y despacha las acciones.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/application/gate"
	"github.com/alejandrodnm/hoopsarb/internal/application/signals"
	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// Motivos de parada publicados en el evento STOP.
const (
	StopContext        = "context_canceled"
	StopRequested      = "stop_requested"
	StopMaxIterations  = "max_iterations"
	StopAuthRequired   = "auth_required"
	StopFeedWarnings   = "max_feed_warnings"
	StopBetsPerSession = "max_bets_per_session"
	StopBlockedStreak  = "max_blocked_streak"
	StopPanic          = "panic"
)

// DelayEstimator es lo que el engine necesita del modelo de delay.
type DelayEstimator interface {
	Add(s domain.DelaySample) bool
	Estimate(pointGap int, source string, fallback float64) (float64, bool)
	Configure(cfg domain.DelayLearning)
}

// Reporter recibe los contadores de la sesión al terminar.
type Reporter interface {
	Report(s domain.Session)
}

// Deps agrupa los colaboradores del engine. Outcomes, Estimator y Reporter son opcionales.
type Deps struct {
	Transmission ports.ScoreSource
	Bet          ports.ScoreSource
	Provider     ports.DecisionProvider
	Executor     ports.Executor
	Policy       ports.PolicySource
	Sink         ports.EventSink
	Outcomes     ports.OutcomeStorage
	Estimator    DelayEstimator
	Reporter     Reporter

	// Now permite inyectar el reloj en tests. Se llama una vez por tick.
	Now func() time.Time
}

// Engine es el orquestador del loop de detección.
type Engine struct {
	trans     ports.ScoreSource
	bet       ports.ScoreSource
	provider  ports.DecisionProvider
	executor  ports.Executor
	policy    ports.PolicySource
	sink      ports.EventSink
	outcomes  ports.OutcomeStorage
	estimator DelayEstimator
	reporter  Reporter
	now       func() time.Time

	gate    *gate.Gate
	signals *signals.Manager

	mu            sync.Mutex // protege session y el estado del tick
	session       domain.Session
	safe          domain.SafeMode
	lastSignature string
	lastLearning  domain.DelayLearning

	stop      atomic.Bool
	closeOnce sync.Once
}

// New crea un Engine con todas las dependencias inyectadas.
func New(d Deps) *Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	e := &Engine{
		trans:     d.Transmission,
		bet:       d.Bet,
		provider:  d.Provider,
		executor:  d.Executor,
		policy:    d.Policy,
		sink:      d.Sink,
		outcomes:  d.Outcomes,
		estimator: d.Estimator,
		reporter:  d.Reporter,
		now:       d.Now,
		gate:      gate.New(),
	}
	e.session = domain.NewSession(e.now())
	e.lastLearning = d.Policy.Current().DelayLearning

	var learner signals.Learner
	if d.Estimator != nil {
		learner = d.Estimator
	}
	e.signals = signals.New(learner, sessionSink{e})
	return e
}

// Run ejecuta el loop hasta que se cumpla una condición de parada.
// Las fuentes se cierran una sola vez al salir, también ante un panic.
func (e *Engine) Run(ctx context.Context) (err error) {
	reason := StopContext
	defer func() {
		if r := recover(); r != nil {
			reason = StopPanic
			err = fmt.Errorf("engine.Run: panic: %v", r)
			slog.Error("engine: panic in loop", "panic", r)
		}
		e.teardown(context.WithoutCancel(ctx), reason)
	}()

	p := e.policy.Current()
	slog.Info("engine: starting",
		"session", e.session.ID,
		"provider", e.provider.Name(),
		"mode", p.Mode,
		"game", p.SelectedGame,
		"interval", p.LoopInterval,
		"auto_execute", p.AutoExecuteEnabled,
	)

	for {
		if r := e.stopReason(ctx); r != "" {
			reason = r
			return nil
		}

		start := time.Now()
		r, interval := e.tick(ctx)
		if r != "" {
			reason = r
			return nil
		}
		slog.Debug("engine: tick complete", "duration", time.Since(start).Round(time.Millisecond))

		if r := e.stopReason(ctx); r != "" {
			reason = r
			return nil
		}
		if !sleepCtx(ctx, interval) {
			return nil
		}
	}
}

// Stop pide una parada cooperativa; el loop sale antes del siguiente tick.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Session devuelve una copia de los contadores de la sesión.
func (e *Engine) Session() domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// SafeMode devuelve una copia del estado del watchdog.
func (e *Engine) SafeMode() domain.SafeMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.safe
}

func (e *Engine) stopReason(ctx context.Context) string {
	if ctx.Err() != nil {
		return StopContext
	}
	if e.stop.Load() {
		return StopRequested
	}
	limit := e.policy.Current().MaxIterations
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit > 0 && e.session.Iterations >= limit {
		return StopMaxIterations
	}
	return ""
}

// teardown cierra las fuentes y publica el reporte de sesión.
func (e *Engine) teardown(ctx context.Context, reason string) {
	e.closeOnce.Do(func() {
		sources := []struct {
			name string
			src  ports.ScoreSource
		}{
			{domain.SourceTransmission, e.trans},
			{domain.SourceBet, e.bet},
		}
		for _, s := range sources {
			if s.src == nil {
				continue
			}
			if err := s.src.Close(); err != nil {
				slog.Warn("engine: error closing source", "source", s.name, "err", err)
			}
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		s := e.session
		e.publish(ctx, domain.NewEvent(domain.EventStop, e.now(), e.policy.Current().SelectedGame, map[string]any{
			"reason":     reason,
			"iterations": s.Iterations,
			"detected":   s.Detected,
			"bets":       s.BetsInSession,
			"blocked":    s.Blocked,
			"expired":    s.Expired,
			"errors":     s.Errors,
		}))
		if e.reporter != nil {
			e.reporter.Report(s)
		}
		slog.Info("engine: stopped", "reason", reason, "iterations", s.Iterations, "bets", s.BetsInSession)
	})
}

// publish cuenta el evento en la sesión y lo entrega al sink. Requiere e.mu.
func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	e.session.Count(ev.Name)
	if e.sink != nil {
		e.sink.Publish(ctx, ev)
	}
}

// sessionSink deja que el Manager de señales publique a través del engine.
// Solo se usa desde dentro del tick, con e.mu ya tomado.
type sessionSink struct{ e *Engine }

func (s sessionSink) Publish(ctx context.Context, ev domain.Event) {
	s.e.publish(ctx, ev)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
