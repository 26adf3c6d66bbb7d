package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session son los contadores de una ejecución del motor.
type Session struct {
	ID            string
	StartedAt     time.Time
	Iterations    int
	BetsInSession int
	BlockedStreak int
	FeedWarnings  int

	// Reporte de sesión
	Detected int
	Blocked  int
	Expired  int
	Errors   int
}

// NewSession crea una sesión con ID aleatorio.
func NewSession(now time.Time) Session {
	return Session{ID: uuid.New().String(), StartedAt: now}
}

// Count actualiza el reporte a partir de un evento.
func (s *Session) Count(name EventName) {
	switch name {
	case EventDetected:
		s.Detected++
	case EventBlocked:
		s.Blocked++
	case EventExpired:
		s.Expired++
	case EventProviderError:
		s.Errors++
	}
}

// Diagnostics es el resumen de eventos de una ventana temporal.
type Diagnostics struct {
	WindowStart    time.Time
	TotalEvents    int
	WindowEvents   int
	CountsByEvent  map[EventName]int
	BlockedRate    float64 // vs detectados
	ExpiredRate    float64
	ErrorRate      float64
	TopBlockReason []ReasonCount
}

// ReasonCount es un motivo de bloqueo con su frecuencia.
type ReasonCount struct {
	Event   EventName
	Message string
	Count   int
}

// BetRecord es una apuesta ejecutada, persistida para feedback.
type BetRecord struct {
	SignalID     string
	Team         Team
	PointGap     int
	Stake        float64
	EVAfterDelay float64
	DelaySeconds float64
	Status       string // PENDING | RESOLVED
	ExecutedAt   time.Time
}
