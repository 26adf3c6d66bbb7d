// Package notify contiene los sinks de eventos del engine: consola/slog,
// Telegram, métricas Prometheus, stream de Redis y el bus que los agrupa.
package notify

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// Bus reparte cada evento a todos los sinks registrados, en orden.
// Un panic en un sink se recupera y no afecta a los demás.
type Bus struct {
	sinks []ports.EventSink
}

// NewBus crea un Bus con los sinks dados; los nil se ignoran.
func NewBus(sinks ...ports.EventSink) *Bus {
	b := &Bus{}
	for _, s := range sinks {
		b.Add(s)
	}
	return b
}

// Add registra un sink.
func (b *Bus) Add(s ports.EventSink) {
	if s != nil {
		b.sinks = append(b.sinks, s)
	}
}

// Len devuelve el número de sinks registrados.
func (b *Bus) Len() int {
	return len(b.sinks)
}

// Publish implementa ports.EventSink.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) {
	for _, s := range b.sinks {
		b.deliver(ctx, s, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, s ports.EventSink, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notify: sink panicked", "event", ev.Name, "panic", r)
		}
	}()
	s.Publish(ctx, ev)
}
