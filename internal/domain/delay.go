package domain

import "time"

const (
	// MaxPlausibleLag es el lag máximo aceptado como muestra válida.
	MaxPlausibleLag = 90 * time.Second
	// HighDelayMargin se suma al umbral de alerta para contar un tick como high-delay.
	HighDelayMargin = 3 * time.Second
)

// DelaySample es un lag observado entre la transmisión y la casa.
type DelaySample struct {
	LagSeconds float64 `json:"lag_seconds"`
	PointGap   int     `json:"point_gap"`
	Source     string  `json:"source"`
}

// Valid devuelve false para lags no positivos o implausibles (> 90s).
func (s DelaySample) Valid() bool {
	return s.LagSeconds > 0 && s.LagSeconds <= MaxPlausibleLag.Seconds()
}
