// Package signals gestiona el ciclo de vida de las señales detectadas:
// identidad, TTL, seguimiento de resolución y alertas de delay.
package signals

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// Learner recibe las muestras de lag al resolverse una señal.
type Learner interface {
	Add(s domain.DelaySample) bool
}

// SweepResult resume un barrido periódico.
type SweepResult struct {
	Resolved  []*domain.Signal
	Expired   []*domain.Signal
	Alerted   []*domain.Signal
	HighDelay bool // alguna señal sin resolver supera umbral + 3s
}

// Manager sigue las señales hasta que la casa alcanza el marcador objetivo.
// El estado de decisión (BLOCKED, EXECUTED...) y el seguimiento de resolución
// son independientes: una señal ejecutada sigue alimentando el modelo de delay.
type Manager struct {
	tracked map[string]*domain.Signal // clave → señal sin resolver
	learner Learner
	sink    ports.EventSink
}

// New crea un Manager. learner y sink pueden ser nil.
func New(learner Learner, sink ports.EventSink) *Manager {
	return &Manager{
		tracked: make(map[string]*domain.Signal),
		learner: learner,
		sink:    sink,
	}
}

// Stamp registra una acción ExecuteBet como señal PENDING.
// Si ya hay una señal sin resolver con la misma identidad la devuelve con
// created=false y no emite evento.
func (m *Manager) Stamp(ctx context.Context, action domain.CandidateAction, trans, bet domain.ScoreSnapshot, now time.Time, ttl time.Duration, game string) (*domain.Signal, bool) {
	if action.Kind != domain.ActionExecuteBet {
		return nil, false
	}

	key := domain.SignalKey(action.Team, action.PointGap, trans, bet)
	if existing, ok := m.tracked[key]; ok {
		slog.Debug("signals: duplicate detection ignored", "id", existing.ID)
		return existing, false
	}

	sig := domain.NewSignal(action, trans, bet, now, ttl)
	m.tracked[key] = sig

	m.emit(ctx, domain.NewEvent(domain.EventDetected, now, game, map[string]any{
		"signal_id":    sig.ID,
		"team":         string(sig.Team),
		"point_gap":    sig.PointGap,
		"target_score": sig.TargetScore,
		"transmission": trans.String(),
		"bet":          bet.String(),
		"expires_at":   sig.ExpiresAt,
	}))
	return sig, true
}

// Sweep revisa cada señal sin resolver contra el último snapshot de la casa.
func (m *Manager) Sweep(ctx context.Context, bet domain.ScoreSnapshot, now time.Time, alertThreshold time.Duration, game string) SweepResult {
	var res SweepResult

	for _, sig := range m.sorted() {
		age := sig.Age(now)

		if !bet.Degraded && bet.Score(sig.Team) >= sig.TargetScore {
			m.resolve(ctx, sig, now, game)
			res.Resolved = append(res.Resolved, sig)
			continue
		}

		if age > alertThreshold && !sig.PendingAlerted {
			sig.PendingAlerted = true
			res.Alerted = append(res.Alerted, sig)
			m.emit(ctx, domain.NewEvent(domain.EventDelayPending, now, game, map[string]any{
				"signal_id":   sig.ID,
				"team":        string(sig.Team),
				"point_gap":   sig.PointGap,
				"age_seconds": age.Seconds(),
			}))
		}
		if age > alertThreshold+domain.HighDelayMargin {
			res.HighDelay = true
		}

		if sig.State == domain.SignalPending && now.After(sig.ExpiresAt) {
			_ = sig.Transition(domain.SignalExpired)
			res.Expired = append(res.Expired, sig)
			m.emit(ctx, domain.NewEvent(domain.EventExpired, now, game, map[string]any{
				"signal_id": sig.ID,
				"reason":    "ttl_elapsed",
			}))
		}

		if age > domain.MaxPlausibleLag {
			slog.Info("signals: dropping unresolved signal", "id", sig.ID, "age", age.Round(time.Second))
			delete(m.tracked, sig.Key)
		}
	}
	return res
}

// resolve cierra el seguimiento de una señal y alimenta el modelo de delay.
func (m *Manager) resolve(ctx context.Context, sig *domain.Signal, now time.Time, game string) {
	resolvedAt := now
	sig.ResolvedAt = &resolvedAt
	sig.LagSeconds = now.Sub(sig.DetectedAt).Seconds()
	if sig.State == domain.SignalPending {
		_ = sig.Transition(domain.SignalResolved)
	}
	delete(m.tracked, sig.Key)

	m.emit(ctx, domain.NewEvent(domain.EventDelayResolved, now, game, map[string]any{
		"signal_id":   sig.ID,
		"lag_seconds": sig.LagSeconds,
		"state":       string(sig.State),
	}))

	if m.learner == nil {
		return
	}
	sample := domain.DelaySample{LagSeconds: sig.LagSeconds, PointGap: sig.PointGap, Source: sig.Source}
	if m.learner.Add(sample) {
		m.emit(ctx, domain.NewEvent(domain.EventDelayLearn, now, game, map[string]any{
			"lag_seconds": sample.LagSeconds,
			"point_gap":   sample.PointGap,
			"source":      sample.Source,
		}))
	}
}

// Finish registra el resultado de la decisión sobre una señal.
func (m *Manager) Finish(sig *domain.Signal, state domain.SignalState) error {
	return sig.Transition(state)
}

// Pending devuelve las señales aún sin resolver, por orden de detección.
func (m *Manager) Pending() []*domain.Signal {
	return m.sorted()
}

// Len devuelve el número de señales sin resolver.
func (m *Manager) Len() int {
	return len(m.tracked)
}

func (m *Manager) sorted() []*domain.Signal {
	out := make([]*domain.Signal, 0, len(m.tracked))
	for _, s := range m.tracked {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

func (m *Manager) emit(ctx context.Context, ev domain.Event) {
	if m.sink != nil {
		m.sink.Publish(ctx, ev)
	}
}
