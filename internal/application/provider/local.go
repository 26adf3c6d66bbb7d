package provider

import (
	"context"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// Local aplica la regla de desfase de domain.AnalyzeDiscrepancy.
type Local struct{}

// NewLocal crea el provider local.
func NewLocal() *Local {
	return &Local{}
}

// Name implementa ports.DecisionProvider.
func (l *Local) Name() string {
	return KindLocal
}

// Suggest implementa ports.DecisionProvider.
func (l *Local) Suggest(_ context.Context, trans, bet domain.ScoreSnapshot, stake float64, _ ports.DecisionContext) domain.CandidateAction {
	return domain.AnalyzeDiscrepancy(trans, bet, stake)
}
