// Package gate aplica las reglas de política previas al riesgo:
// whitelist, score mínimo del juego y cooldown por clave.
package gate

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Reason es el motivo de bloqueo del gate.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonWhitelistEmpty Reason = "whitelist_empty"
	ReasonWhitelistBlock Reason = "whitelist_block"
	ReasonScoreBelow     Reason = "score_below_threshold"
	ReasonCooldownActive Reason = "cooldown_active"
)

// Gate evalúa las comprobaciones en orden y corta en la primera que falla.
type Gate struct {
	attempts map[string]time.Time // (juego, equipo, gap) → último intento
}

// New crea un Gate vacío.
func New() *Gate {
	return &Gate{attempts: make(map[string]time.Time)}
}

// Check devuelve ok=false con el motivo de la primera comprobación que falla.
func (g *Gate) Check(p domain.PolicyConfig, action domain.CandidateAction, now time.Time) (bool, Reason) {
	game := p.SelectedGame

	if p.WhitelistEnabled {
		if len(p.WhitelistGames) == 0 {
			return false, ReasonWhitelistEmpty
		}
		if !p.Whitelisted(game) {
			return false, ReasonWhitelistBlock
		}
	}

	if p.MinGameScore > 0 {
		score, _ := p.GameScore(game)
		if score < p.MinGameScore {
			return false, ReasonScoreBelow
		}
	}

	if p.Cooldown > 0 {
		if last, ok := g.attempts[cooldownKey(game, action.Team, action.PointGap)]; ok {
			if now.Sub(last) < p.Cooldown {
				return false, ReasonCooldownActive
			}
		}
	}

	return true, ReasonNone
}

// Record marca un intento (ejecutado o no) para el cooldown.
func (g *Gate) Record(game string, team domain.Team, gap int, now time.Time) {
	g.attempts[cooldownKey(game, team, gap)] = now
}

// Cleanup elimina intentos más antiguos que window.
func (g *Gate) Cleanup(now time.Time, window time.Duration) {
	for k, ts := range g.attempts {
		if now.Sub(ts) >= window {
			delete(g.attempts, k)
		}
	}
}

// Len devuelve el número de claves en cooldown.
func (g *Gate) Len() int {
	return len(g.attempts)
}

func cooldownKey(game string, team domain.Team, gap int) string {
	return fmt.Sprintf("%s|%s|%d", game, team, gap)
}
