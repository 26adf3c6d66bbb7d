package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// DecisionContext es el contexto que acompaña a cada consulta al provider.
type DecisionContext struct {
	Game      string
	Iteration int
}

// DecisionProvider propone una acción a partir de los dos snapshots.
type DecisionProvider interface {
	Name() string

	// Suggest nunca devuelve error: los fallos se devuelven como
	// domain.ProviderFailure.
	Suggest(ctx context.Context, trans, bet domain.ScoreSnapshot, stake float64, dc DecisionContext) domain.CandidateAction
}
