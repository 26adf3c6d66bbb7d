package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// tick ejecuta una iteración completa. Devuelve el motivo de parada si la
// iteración fuerza la salida, y el intervalo de espera de la política vigente.
func (e *Engine) tick(ctx context.Context) (string, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	start := time.Now()
	p := e.reloadPolicy()
	game := p.SelectedGame

	// 1. Snapshots: las fuentes nunca devuelven error
	trans := e.trans.GetScore(ctx)
	bet := e.bet.GetScore(ctx)
	for _, s := range []domain.ScoreSnapshot{trans, bet} {
		if s.Degraded {
			e.session.FeedWarnings++
			e.publish(ctx, domain.NewEvent(domain.EventFeedWarning, now, game, map[string]any{
				"source":  s.Source,
				"message": s.Err,
				"count":   e.session.FeedWarnings,
			}))
		}
	}

	// 2. Autenticación
	if trans.AuthRequired || bet.AuthRequired {
		e.publish(ctx, domain.NewEvent(domain.EventAuthRequired, now, game, map[string]any{
			"transmission": trans.AuthRequired,
			"bet":          bet.AuthRequired,
		}))
		if p.Automation.StopOnAuthRequired {
			e.session.Iterations++
			return StopAuthRequired, p.LoopInterval
		}
	}

	// 3. Ciclo de vida de señales + watchdog
	e.sweep(ctx, bet, now, p)

	// 4. Paradas forzadas
	if reason := e.forcedStop(p); reason != "" {
		e.publish(ctx, domain.NewEvent(domain.EventAutoStop, now, game, map[string]any{
			"reason":         reason,
			"feed_warnings":  e.session.FeedWarnings,
			"bets":           e.session.BetsInSession,
			"blocked_streak": e.session.BlockedStreak,
		}))
		e.session.Iterations++
		return reason, p.LoopInterval
	}

	// 5. Decisión, solo si cambió algún marcador
	if !trans.Degraded && !bet.Degraded {
		e.decide(ctx, trans, bet, now, p)
	}

	e.session.Iterations++
	e.gate.Cleanup(now, p.Cooldown)
	e.publish(ctx, domain.NewEvent(domain.EventTick, now, game, map[string]any{
		"iteration":   e.session.Iterations,
		"duration_ms": time.Since(start).Milliseconds(),
		"pending":     e.signals.Len(),
		"safe_mode":   e.safe.Enabled,
	}))
	return "", p.LoopInterval
}

// reloadPolicy relee la configuración; si falla se mantiene el snapshot anterior.
func (e *Engine) reloadPolicy() domain.PolicyConfig {
	p, err := e.policy.Reload()
	if err != nil {
		slog.Warn("engine: config reload failed, keeping previous policy", "err", err)
		p = e.policy.Current()
	}
	if e.estimator != nil && p.DelayLearning != e.lastLearning {
		e.estimator.Configure(p.DelayLearning)
		e.lastLearning = p.DelayLearning
	}
	return p
}

// sweep alimenta el watchdog con el barrido de señales.
func (e *Engine) sweep(ctx context.Context, bet domain.ScoreSnapshot, now time.Time, p domain.PolicyConfig) {
	res := e.signals.Sweep(ctx, bet, now, p.DelayAlertThreshold, p.SelectedGame)

	for _, sig := range res.Resolved {
		lag := time.Duration(sig.LagSeconds * float64(time.Second))
		e.safe.ObserveResolved(lag, p.DelayAlertThreshold, now)

		if sig.State == domain.SignalExecuted && e.outcomes != nil {
			if err := e.outcomes.MarkBetResolved(ctx, sig.ID, sig.LagSeconds); err != nil {
				slog.Warn("engine: error marking bet resolved", "signal", sig.ID, "err", err)
			}
		}
	}

	if res.HighDelay && e.safe.ObserveHighDelay(now) {
		slog.Warn("engine: safe mode engaged", "consecutive_high_delay", e.safe.ConsecutiveHighDelay)
		e.publish(ctx, domain.NewEvent(domain.EventSafeModeEnabled, now, p.SelectedGame, map[string]any{
			"consecutive_high_delay": e.safe.ConsecutiveHighDelay,
			"reason":                 "high_delay",
		}))
	}

	if e.safe.MaybeRecover(now, p.SafeModeRecovery) {
		slog.Info("engine: safe mode recovered", "auto_execute", p.AutoExecuteEnabled)
		e.publish(ctx, domain.NewEvent(domain.EventSafeModeRecovered, now, p.SelectedGame, nil))
	}
}

// forcedStop devuelve el primer umbral de automatización superado. 0 = sin límite.
func (e *Engine) forcedStop(p domain.PolicyConfig) string {
	a := p.Automation
	switch {
	case a.MaxFeedWarnings > 0 && e.session.FeedWarnings >= a.MaxFeedWarnings:
		return StopFeedWarnings
	case a.MaxBetsPerSession > 0 && e.session.BetsInSession >= a.MaxBetsPerSession:
		return StopBetsPerSession
	case a.MaxBlockedStreak > 0 && e.session.BlockedStreak >= a.MaxBlockedStreak:
		return StopBlockedStreak
	}
	return ""
}

// decide compara los marcadores y despacha la acción del provider.
func (e *Engine) decide(ctx context.Context, trans, bet domain.ScoreSnapshot, now time.Time, p domain.PolicyConfig) {
	sig := domain.Signature(trans, bet)
	if sig == e.lastSignature {
		return
	}
	e.lastSignature = sig
	game := p.SelectedGame

	e.publish(ctx, domain.NewEvent(domain.EventCompare, now, game, map[string]any{
		"transmission": trans.String(),
		"bet":          bet.String(),
	}))

	action := e.provider.Suggest(ctx, trans, bet, p.StakeAmount, ports.DecisionContext{
		Game:      game,
		Iteration: e.session.Iterations + 1,
	})

	if trans.TeamA != bet.TeamA || trans.TeamB != bet.TeamB {
		fields := map[string]any{
			"transmission": trans.String(),
			"bet":          bet.String(),
		}
		if action.Kind == domain.ActionRegisterDiscrepancy {
			fields["team"] = string(action.Team)
			fields["point_gap"] = action.PointGap
		}
		e.publish(ctx, domain.NewEvent(domain.EventDesync, now, game, fields))
	}

	switch action.Kind {
	case domain.ActionProviderError:
		slog.Warn("engine: provider error", "provider", e.provider.Name(), "message", action.Message)
		e.publish(ctx, domain.NewEvent(domain.EventProviderError, now, game, map[string]any{
			"provider": e.provider.Name(),
			"message":  action.Message,
		}))
	case domain.ActionExecuteBet:
		e.dispatch(ctx, action, trans, bet, now, p)
	}
}
