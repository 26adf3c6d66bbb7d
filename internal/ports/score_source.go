package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// ScoreSource entrega el marcador de un feed.
type ScoreSource interface {
	// GetScore devuelve el snapshot actual. Nunca devuelve error: los fallos
	// se representan como un snapshot degradado.
	GetScore(ctx context.Context) domain.ScoreSnapshot

	// Close libera la sesión de red. Idempotente.
	Close() error
}
