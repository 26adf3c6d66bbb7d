// Package delay implementa el modelo online que aprende el lag de aceptación
// de la casa por (gap, fuente).
package delay

import (
	"log/slog"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

const (
	minExactSamples = 3 // (gap, fuente) exactos
	minGapSamples   = 4 // solo gap
)

// Estimator mantiene un buffer acotado de muestras; al llenarse descarta la más antigua.
// Lo posee el loop del motor en exclusiva: no usa locks.
type Estimator struct {
	cfg     domain.DelayLearning
	store   ports.DelayStore
	samples []domain.DelaySample
}

// New crea el estimador y carga las muestras persistidas.
// store puede ser nil (sin persistencia).
func New(cfg domain.DelayLearning, store ports.DelayStore) *Estimator {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 500
	}
	e := &Estimator{cfg: cfg, store: store}
	e.load()
	return e
}

// load lee las muestras guardadas. Un fichero ilegible equivale a empezar vacío.
func (e *Estimator) load() {
	if e.store == nil {
		return
	}
	samples, err := e.store.LoadSamples()
	if err != nil {
		slog.Warn("delay: could not load model, starting empty", "err", err)
		return
	}
	for _, s := range samples {
		if s.Valid() {
			e.push(s)
		}
	}
	slog.Info("delay: model loaded", "samples", len(e.samples))
}

// Configure aplica la sección delay_learning recargada.
func (e *Estimator) Configure(cfg domain.DelayLearning) {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = e.cfg.MaxSamples
	}
	e.cfg = cfg
	if over := len(e.samples) - cfg.MaxSamples; over > 0 {
		e.samples = append([]domain.DelaySample(nil), e.samples[over:]...)
	}
}

// Add incorpora una muestra. Devuelve false si se rechaza (lag no plausible
// o aprendizaje desactivado). La persistencia es best-effort.
func (e *Estimator) Add(s domain.DelaySample) bool {
	if !e.cfg.Enabled || !s.Valid() {
		return false
	}
	if s.Source == "" {
		s.Source = "unknown"
	}
	e.push(s)
	e.persist()
	return true
}

func (e *Estimator) push(s domain.DelaySample) {
	if len(e.samples) >= e.cfg.MaxSamples {
		copy(e.samples, e.samples[1:])
		e.samples = e.samples[:len(e.samples)-1]
	}
	e.samples = append(e.samples, s)
}

// persist guarda el buffer. Un fallo se registra y se ignora: el buffer en
// memoria sigue siendo la verdad durante el resto de la ejecución.
func (e *Estimator) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveSamples(e.Samples()); err != nil {
		slog.Warn("delay: persist failed", "err", err, "samples", len(e.samples))
	}
}

// Estimate devuelve el delay esperado y si proviene del modelo.
//
// Orden estricto: (gap, fuente) con ≥3 muestras > gap con ≥4 > media global >
// fallback. Con menos de min_samples_for_override muestras devuelve fallback.
func (e *Estimator) Estimate(pointGap int, source string, fallback float64) (float64, bool) {
	if !e.cfg.Enabled || len(e.samples) == 0 || len(e.samples) < e.cfg.MinSamplesForOverride {
		return fallback, false
	}
	if source == "" {
		source = "unknown"
	}

	var exact, byGap []float64
	all := make([]float64, 0, len(e.samples))
	for _, s := range e.samples {
		all = append(all, s.LagSeconds)
		if s.PointGap != pointGap {
			continue
		}
		byGap = append(byGap, s.LagSeconds)
		if s.Source == source {
			exact = append(exact, s.LagSeconds)
		}
	}

	switch {
	case len(exact) >= minExactSamples:
		return mean(exact), true
	case len(byGap) >= minGapSamples:
		return mean(byGap), true
	default:
		return mean(all), true
	}
}

// Samples devuelve una copia del buffer.
func (e *Estimator) Samples() []domain.DelaySample {
	return append([]domain.DelaySample(nil), e.samples...)
}

// Stats resume el modelo.
type Stats struct {
	Enabled  bool
	Samples  int
	AvgDelay float64
}

// Stats devuelve el resumen del modelo.
func (e *Estimator) Stats() Stats {
	vals := make([]float64, 0, len(e.samples))
	for _, s := range e.samples {
		vals = append(vals, s.LagSeconds)
	}
	st := Stats{Enabled: e.cfg.Enabled, Samples: len(vals)}
	if len(vals) > 0 {
		st.AvgDelay = mean(vals)
	}
	return st
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
