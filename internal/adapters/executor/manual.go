// Package executor implementa los ejecutores de apuestas: manual (solo log)
// y webhook HTTP hacia el servicio que coloca la apuesta.
package executor

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Manual registra la recomendación y no apuesta. Devuelve Accepted=false,
// que el engine cuenta como bloqueo manual_mode.
type Manual struct{}

// NewManual crea el executor manual.
func NewManual() *Manual {
	return &Manual{}
}

// Execute implementa ports.Executor.
func (m *Manual) Execute(_ context.Context, o domain.BetOrder) (domain.BetResult, error) {
	slog.Info("executor: manual recommendation",
		"signal", o.SignalID,
		"team", o.Team,
		"point_gap", o.PointGap,
		"stake", o.Stake,
	)
	return domain.BetResult{Accepted: false, Message: domain.BlockManualMode}, nil
}
