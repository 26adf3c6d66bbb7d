package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Executor coloca la apuesta downstream.
type Executor interface {
	Execute(ctx context.Context, order domain.BetOrder) (domain.BetResult, error)
}
