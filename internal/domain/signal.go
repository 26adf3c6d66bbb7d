package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrTerminalState se devuelve al intentar salir de un estado terminal.
var ErrTerminalState = errors.New("signal: terminal state")

// SignalState es el ciclo de vida de una señal.
type SignalState string

const (
	SignalPending  SignalState = "PENDING"
	SignalResolved SignalState = "RESOLVED"
	SignalExpired  SignalState = "EXPIRED"
	SignalBlocked  SignalState = "BLOCKED"
	SignalExecuted SignalState = "EXECUTED"
)

// Terminal devuelve true para los estados de los que no se sale.
func (s SignalState) Terminal() bool {
	return s != SignalPending
}

// signalNamespace deriva los IDs de señal (UUID v5) a partir de la clave.
var signalNamespace = uuid.MustParse("6f1c2a8e-3b7d-4c55-9a0e-5d2f7b1e4c90")

// Signal es un desfase accionable con vida limitada.
type Signal struct {
	ID          string // UUID v5 de Key: mismas entradas → mismo ID
	Key         string
	Team        Team
	PointGap    int
	DetectedAt  time.Time
	ExpiresAt   time.Time
	TargetScore int // marcador de la transmisión que la casa debe alcanzar
	Source      string
	State       SignalState

	// Seguimiento de resolución, independiente del estado de decisión.
	ResolvedAt     *time.Time
	LagSeconds     float64
	PendingAlerted bool
}

// SignalKey compone la identidad determinista de una señal:
// equipo, gap y los cuatro marcadores observados al detectar.
func SignalKey(team Team, gap int, trans, bet ScoreSnapshot) string {
	return fmt.Sprintf("%s|%d|%d-%d|%d-%d", team, gap, trans.TeamA, trans.TeamB, bet.TeamA, bet.TeamB)
}

// SignalID devuelve el ID estable para una clave.
func SignalID(key string) string {
	return uuid.NewSHA1(signalNamespace, []byte(key)).String()
}

// NewSignal crea una señal PENDING para una acción ExecuteBet.
func NewSignal(action CandidateAction, trans, bet ScoreSnapshot, now time.Time, ttl time.Duration) *Signal {
	key := SignalKey(action.Team, action.PointGap, trans, bet)
	return &Signal{
		ID:          SignalID(key),
		Key:         key,
		Team:        action.Team,
		PointGap:    action.PointGap,
		DetectedAt:  now,
		ExpiresAt:   now.Add(ttl),
		TargetScore: trans.Score(action.Team),
		Source:      bet.Source,
		State:       SignalPending,
	}
}

// Transition mueve la señal a un nuevo estado. Los estados terminales son finales.
func (s *Signal) Transition(to SignalState) error {
	if s.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTerminalState, s.State, to)
	}
	s.State = to
	return nil
}

// Age devuelve el tiempo transcurrido desde la detección.
func (s *Signal) Age(now time.Time) time.Duration {
	return now.Sub(s.DetectedAt)
}

// Resolved devuelve true si la casa ya alcanzó el marcador objetivo.
func (s *Signal) Resolved() bool {
	return s.ResolvedAt != nil
}

// ExpiredAt devuelve true si, sumando el delay de aceptación previsto,
// la señal ya no estaría viva al ejecutarse.
func (s *Signal) ExpiredAt(now time.Time, acceptanceDelay time.Duration) bool {
	return now.Add(acceptanceDelay).After(s.ExpiresAt)
}
