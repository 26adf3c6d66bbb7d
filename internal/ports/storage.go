package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// DelayStore persiste las muestras del modelo de delay entre reinicios.
type DelayStore interface {
	LoadSamples() ([]domain.DelaySample, error)
	SaveSamples(samples []domain.DelaySample) error
}

// OutcomeStorage registra las apuestas ejecutadas y su resolución.
type OutcomeStorage interface {
	RecordBet(ctx context.Context, rec domain.BetRecord) error
	MarkBetResolved(ctx context.Context, signalID string, lagSeconds float64) error
}

// DiagnosticsReader consulta el histórico de eventos.
type DiagnosticsReader interface {
	Diagnostics(ctx context.Context, window time.Duration, limit int) (domain.Diagnostics, error)
}
