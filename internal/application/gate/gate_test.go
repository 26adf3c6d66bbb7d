package gate_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/application/gate"
	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func makePolicy() domain.PolicyConfig {
	p := domain.DefaultPolicy()
	p.SelectedGame = "LAL vs BOS"
	p.Cooldown = 20 * time.Second
	return p
}

func TestCheck_PassesByDefault(t *testing.T) {
	g := gate.New()
	ok, reason := g.Check(makePolicy(), domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.True(t, ok)
	assert.Equal(t, gate.ReasonNone, reason)
}

func TestCheck_Whitelist(t *testing.T) {
	g := gate.New()
	p := makePolicy()
	p.WhitelistEnabled = true

	ok, reason := g.Check(p, domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.False(t, ok)
	assert.Equal(t, gate.ReasonWhitelistEmpty, reason)

	p.WhitelistGames = []string{"MIA vs NYK"}
	_, reason = g.Check(p, domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.Equal(t, gate.ReasonWhitelistBlock, reason)

	p.WhitelistGames = append(p.WhitelistGames, "LAL vs BOS")
	ok, _ = g.Check(p, domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.True(t, ok)
}

func TestCheck_MinGameScore(t *testing.T) {
	g := gate.New()
	p := makePolicy()
	p.MinGameScore = 7
	p.GameScores = map[string]float64{"LAL vs BOS": 6.5}

	ok, reason := g.Check(p, domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.False(t, ok)
	assert.Equal(t, gate.ReasonScoreBelow, reason)

	// juego sin score registrado cuenta como 0
	p.GameScores = nil
	_, reason = g.Check(p, domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.Equal(t, gate.ReasonScoreBelow, reason)

	p.GameScores = map[string]float64{"LAL vs BOS": 7}
	ok, _ = g.Check(p, domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.True(t, ok)
}

func TestCheck_Cooldown(t *testing.T) {
	g := gate.New()
	p := makePolicy()
	action := domain.ExecuteBet(domain.TeamA, 2, 10)

	ok, _ := g.Check(p, action, t0)
	assert.True(t, ok)
	g.Record(p.SelectedGame, action.Team, action.PointGap, t0)

	ok, reason := g.Check(p, action, t0.Add(10*time.Second))
	assert.False(t, ok)
	assert.Equal(t, gate.ReasonCooldownActive, reason)

	// otra clave no está afectada
	ok, _ = g.Check(p, domain.ExecuteBet(domain.TeamA, 3, 10), t0.Add(10*time.Second))
	assert.True(t, ok)

	ok, _ = g.Check(p, action, t0.Add(20*time.Second))
	assert.True(t, ok, "fuera de la ventana")
}

func TestCheck_OrderShortCircuits(t *testing.T) {
	g := gate.New()
	p := makePolicy()
	p.WhitelistEnabled = true
	p.WhitelistGames = []string{"other"}
	p.MinGameScore = 100
	g.Record(p.SelectedGame, domain.TeamA, 2, t0)

	_, reason := g.Check(p, domain.ExecuteBet(domain.TeamA, 2, 10), t0)
	assert.Equal(t, gate.ReasonWhitelistBlock, reason, "la whitelist va primero")
}

func TestCleanup(t *testing.T) {
	g := gate.New()
	g.Record("g", domain.TeamA, 2, t0)
	g.Record("g", domain.TeamB, 3, t0.Add(30*time.Second))

	g.Cleanup(t0.Add(40*time.Second), 20*time.Second)

	assert.Equal(t, 1, g.Len())
}
