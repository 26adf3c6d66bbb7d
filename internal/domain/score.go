package domain

import "fmt"

// Team identifica el equipo objetivo de una señal.
type Team string

const (
	TeamA Team = "Team A"
	TeamB Team = "Team B"
)

// Fuentes canónicas de los dos feeds.
const (
	SourceTransmission = "transmission"
	SourceBet          = "bet"
)

// ScoreSnapshot es el marcador observado por una fuente en un tick.
// Se produce nuevo en cada tick y nunca se modifica.
type ScoreSnapshot struct {
	TeamA        int
	TeamB        int
	Source       string
	AuthRequired bool   // la fuente pide login
	Degraded     bool   // fallo de fetch: marcador a cero
	Err          string // motivo del fallo, vacío si no hay
}

// DegradedSnapshot construye el snapshot que representa un fallo de la fuente.
// Los errores de fuente nunca se propagan al loop como error.
func DegradedSnapshot(source string, err error) ScoreSnapshot {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ScoreSnapshot{Source: source, Degraded: true, Err: msg}
}

// Score devuelve el marcador del equipo dado.
func (s ScoreSnapshot) Score(t Team) int {
	if t == TeamB {
		return s.TeamB
	}
	return s.TeamA
}

// String devuelve "a-b".
func (s ScoreSnapshot) String() string {
	return fmt.Sprintf("%d-%d", s.TeamA, s.TeamB)
}

// Signature devuelve la firma del par de marcadores usada para deduplicar ticks.
func Signature(trans, bet ScoreSnapshot) string {
	return fmt.Sprintf("%d-%d|%d-%d", trans.TeamA, trans.TeamB, bet.TeamA, bet.TeamB)
}
