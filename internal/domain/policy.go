package domain

import (
	"errors"
	"time"
)

// ErrInvalidConfig indica una configuración que no pasa la validación.
var ErrInvalidConfig = errors.New("invalid config")

// DelayLearning configura el modelo online de delay.
type DelayLearning struct {
	Enabled               bool
	MaxSamples            int
	ModelPath             string
	MinSamplesForOverride int
}

// Automation agrupa los umbrales de parada forzada. 0 = sin límite.
type Automation struct {
	StopOnAuthRequired bool
	MaxFeedWarnings    int
	MaxBetsPerSession  int
	MaxBlockedStreak   int
}

// PolicyConfig es el snapshot inmutable de política que se recarga en cada tick.
// Se construye entero y validado; una recarga inválida conserva el anterior.
type PolicyConfig struct {
	Mode                 string
	DecisionProviderKind string
	AutoExecuteEnabled   bool
	LoopInterval         time.Duration
	SignalTTL            time.Duration
	Cooldown             time.Duration
	DelayAlertThreshold  time.Duration
	SafeModeRecovery     time.Duration
	ProviderTimeout      time.Duration
	StakeAmount          float64
	MaxIterations        int

	RiskFilters   RiskFilters
	DelayLearning DelayLearning
	Automation    Automation

	SelectedGame     string
	WhitelistEnabled bool
	WhitelistGames   []string
	MinGameScore     float64
	GameScores       map[string]float64
}

// DefaultPolicy devuelve la política por defecto.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		Mode:                 "live",
		DecisionProviderKind: "local",
		LoopInterval:         500 * time.Millisecond,
		SignalTTL:            8 * time.Second,
		Cooldown:             20 * time.Second,
		DelayAlertThreshold:  6 * time.Second,
		SafeModeRecovery:     10 * time.Minute,
		ProviderTimeout:      8 * time.Second,
		StakeAmount:          10,
		RiskFilters:          DefaultRiskFilters(),
		DelayLearning: DelayLearning{
			Enabled:               true,
			MaxSamples:            500,
			ModelPath:             "data/delay_model.json",
			MinSamplesForOverride: 8,
		},
		GameScores: map[string]float64{},
	}
}

// Whitelisted devuelve true si el juego está en la whitelist.
func (p PolicyConfig) Whitelisted(game string) bool {
	for _, g := range p.WhitelistGames {
		if g == game {
			return true
		}
	}
	return false
}

// GameScore devuelve el score registrado para el juego y si existe.
func (p PolicyConfig) GameScore(game string) (float64, bool) {
	v, ok := p.GameScores[game]
	return v, ok
}
