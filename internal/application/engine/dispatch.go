package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// dispatch lleva una acción ExecuteBet por el pipeline:
// señal → gate → riesgo → ejecución automática → TTL → executor.
func (e *Engine) dispatch(ctx context.Context, action domain.CandidateAction, trans, bet domain.ScoreSnapshot, now time.Time, p domain.PolicyConfig) {
	game := p.SelectedGame

	sig, created := e.signals.Stamp(ctx, action, trans, bet, now, p.SignalTTL, game)
	if !created {
		return
	}

	if ok, reason := e.gate.Check(p, action, now); !ok {
		e.block(ctx, sig, string(reason), now, game, nil)
		return
	}
	e.gate.Record(game, action.Team, action.PointGap, now)

	rf := p.RiskFilters
	delaySeconds := rf.BetDelaySeconds
	learned := false
	if e.estimator != nil {
		delaySeconds, learned = e.estimator.Estimate(action.PointGap, bet.Source, rf.BetDelaySeconds)
	}

	risk := domain.EvaluateRisk(action.PointGap, action.Stake, rf, delaySeconds)
	riskFields := map[string]any{
		"ev_after_delay": risk.EVAfterDelay,
		"delay_seconds":  delaySeconds,
		"delay_learned":  learned,
	}
	if !risk.ShouldExecute {
		e.block(ctx, sig, string(risk.Reason), now, game, riskFields)
		return
	}
	if !p.AutoExecuteEnabled {
		e.block(ctx, sig, domain.BlockAutoExecuteDisabled, now, game, riskFields)
		return
	}
	if e.safe.ForcesOff() {
		e.block(ctx, sig, domain.BlockSafeModeActive, now, game, riskFields)
		return
	}

	// La edad de la señal cuenta desde la lectura de los marcadores; el TTL
	// se comprueba con el reloj de justo antes de ejecutar.
	now = e.now()
	acceptance := time.Duration(delaySeconds * float64(time.Second))
	if sig.ExpiredAt(now, acceptance) {
		e.finish(sig, domain.SignalExpired)
		e.publish(ctx, domain.NewEvent(domain.EventExpired, now, game, map[string]any{
			"signal_id":     sig.ID,
			"reason":        "ttl_before_acceptance",
			"delay_seconds": delaySeconds,
		}))
		return
	}

	order := domain.BetOrder{
		SignalID: sig.ID,
		Team:     sig.Team,
		PointGap: sig.PointGap,
		Stake:    risk.AdjustedStake,
	}
	res, err := e.executor.Execute(ctx, order)
	if err != nil {
		slog.Warn("engine: executor error", "signal", sig.ID, "err", err)
		riskFields["error"] = err.Error()
		e.block(ctx, sig, domain.BlockExecutorError, now, game, riskFields)
		return
	}
	if !res.Accepted {
		reason := res.Message
		if reason == "" {
			reason = domain.BlockManualMode
		}
		e.block(ctx, sig, reason, now, game, riskFields)
		return
	}

	e.finish(sig, domain.SignalExecuted)
	e.session.BetsInSession++
	e.session.BlockedStreak = 0
	e.publish(ctx, domain.NewEvent(domain.EventBetPlaced, now, game, map[string]any{
		"signal_id":      sig.ID,
		"team":           string(sig.Team),
		"point_gap":      sig.PointGap,
		"stake":          order.Stake,
		"ev_after_delay": risk.EVAfterDelay,
		"delay_seconds":  delaySeconds,
		"risk_reason":    string(risk.Reason),
		"reference":      res.Reference,
	}))

	if e.outcomes != nil {
		rec := domain.BetRecord{
			SignalID:     sig.ID,
			Team:         sig.Team,
			PointGap:     sig.PointGap,
			Stake:        order.Stake,
			EVAfterDelay: risk.EVAfterDelay,
			DelaySeconds: delaySeconds,
			Status:       "PENDING",
			ExecutedAt:   now,
		}
		if err := e.outcomes.RecordBet(ctx, rec); err != nil {
			slog.Warn("engine: error recording bet", "signal", sig.ID, "err", err)
		}
	}
}

// block marca la señal como BLOCKED y publica BLOQUEADO con el motivo.
func (e *Engine) block(ctx context.Context, sig *domain.Signal, reason string, now time.Time, game string, extra map[string]any) {
	e.finish(sig, domain.SignalBlocked)
	e.session.BlockedStreak++

	fields := map[string]any{
		"signal_id": sig.ID,
		"team":      string(sig.Team),
		"point_gap": sig.PointGap,
		"reason":    reason,
	}
	for k, v := range extra {
		fields[k] = v
	}
	slog.Info("engine: signal blocked", "signal", sig.ID, "reason", reason)
	e.publish(ctx, domain.NewEvent(domain.EventBlocked, now, game, fields))
}

func (e *Engine) finish(sig *domain.Signal, state domain.SignalState) {
	if err := e.signals.Finish(sig, state); err != nil {
		slog.Debug("engine: signal already final", "signal", sig.ID, "state", sig.State, "target", state)
	}
}
