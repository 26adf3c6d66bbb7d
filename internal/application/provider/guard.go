package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// DefaultTimeout es el plazo por defecto de una consulta al provider.
const DefaultTimeout = 8 * time.Second

// Guard envuelve un provider con un deadline y recuperación de panics.
// Un provider que no responde a tiempo devuelve ProviderFailure("timeout").
type Guard struct {
	inner   ports.DecisionProvider
	timeout time.Duration
}

// NewGuard crea un Guard. timeout <= 0 usa DefaultTimeout.
func NewGuard(inner ports.DecisionProvider, timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{inner: inner, timeout: timeout}
}

// Name implementa ports.DecisionProvider.
func (g *Guard) Name() string {
	return g.inner.Name()
}

// Suggest implementa ports.DecisionProvider.
func (g *Guard) Suggest(ctx context.Context, trans, bet domain.ScoreSnapshot, stake float64, dc ports.DecisionContext) domain.CandidateAction {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// buffer de 1 para que la goroutine no quede bloqueada si vence el plazo
	done := make(chan domain.CandidateAction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("provider: panic recovered", "provider", g.inner.Name(), "panic", r)
				done <- domain.ProviderFailure(fmt.Sprintf("panic: %v", r))
			}
		}()
		done <- g.inner.Suggest(ctx, trans, bet, stake, dc)
	}()

	select {
	case action := <-done:
		return action
	case <-ctx.Done():
		slog.Warn("provider: no answer before deadline", "provider", g.inner.Name(), "timeout", g.timeout)
		return domain.ProviderFailure("timeout")
	}
}
