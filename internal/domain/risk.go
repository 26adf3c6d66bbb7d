package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// RiskReason codifica el motivo de una RiskDecision.
type RiskReason string

const (
	RiskFilterDisabled RiskReason = "risk_filter_disabled"
	RiskEVBelow        RiskReason = "ev_below_threshold"
	RiskApprovedFixed  RiskReason = "approved_fixed_stake"
	RiskApprovedScaled RiskReason = "approved_scaled_stake"
)

const (
	defaultEdgeUnknown = 0.03 // gap sin entrada en la tabla de edges
	minEVFloor         = 1e-6
	evPrecision        = 1e9
)

// RiskFilters es la configuración del filtro de riesgo por delay.
type RiskFilters struct {
	Enabled          bool
	BetDelaySeconds  float64 // delay de fallback si el modelo no tiene datos
	MinEVAfterDelay  float64
	EVDecayPerSecond float64
	EdgeByPoints     map[int]float64
	StakeScaleWithEV bool
	MinStakeFactor   float64
	MaxStakeFactor   float64
}

// DefaultRiskFilters devuelve los valores por defecto.
func DefaultRiskFilters() RiskFilters {
	return RiskFilters{
		Enabled:          true,
		BetDelaySeconds:  5.0,
		MinEVAfterDelay:  0.01,
		EVDecayPerSecond: 0.01,
		EdgeByPoints:     map[int]float64{2: 0.06, 3: 0.09},
		StakeScaleWithEV: true,
		MinStakeFactor:   0.4,
		MaxStakeFactor:   1.2,
	}
}

// RiskDecision es el resultado del evaluador de riesgo. Nunca se modifica.
type RiskDecision struct {
	ShouldExecute bool
	AdjustedStake float64
	EVAfterDelay  float64
	Reason        RiskReason
}

// EvaluateRisk decide si una apuesta sigue teniendo EV tras el delay estimado
// y escala el stake en proporción. Es una función pura.
//
//	ev     = edge[gap] - delay × decay
//	factor = clamp(ev / minEV, minFactor, maxFactor)
func EvaluateRisk(pointGap int, stake float64, rf RiskFilters, delaySeconds float64) RiskDecision {
	if !rf.Enabled {
		return RiskDecision{ShouldExecute: true, AdjustedStake: stake, Reason: RiskFilterDisabled}
	}

	edge, ok := rf.EdgeByPoints[pointGap]
	if !ok {
		edge = defaultEdgeUnknown
	}
	// Redondeo a 1e-9 para que 0.06 - 5×0.01 iguale exactamente un umbral de 0.01.
	ev := roundTo(edge-delaySeconds*rf.EVDecayPerSecond, evPrecision)

	if ev < rf.MinEVAfterDelay {
		return RiskDecision{ShouldExecute: false, AdjustedStake: 0, EVAfterDelay: ev, Reason: RiskEVBelow}
	}

	if !rf.StakeScaleWithEV {
		return RiskDecision{ShouldExecute: true, AdjustedStake: stake, EVAfterDelay: ev, Reason: RiskApprovedFixed}
	}

	factor := ev / math.Max(rf.MinEVAfterDelay, minEVFloor)
	factor = math.Max(rf.MinStakeFactor, math.Min(rf.MaxStakeFactor, factor))
	adjusted := decimal.NewFromFloat(stake).Mul(decimal.NewFromFloat(factor)).Round(2).InexactFloat64()

	return RiskDecision{ShouldExecute: true, AdjustedStake: adjusted, EVAfterDelay: ev, Reason: RiskApprovedScaled}
}

func roundTo(x, scale float64) float64 {
	return math.Round(x*scale) / scale
}
