package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// EventSink recibe cada transición observable del motor.
type EventSink interface {
	Publish(ctx context.Context, ev domain.Event)
}
