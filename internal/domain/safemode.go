package domain

import "time"

// SafeModeThreshold es el número de ticks high-delay consecutivos que activan safe mode.
const SafeModeThreshold = 5

// SafeMode desactiva la ejecución automática tras delays altos repetidos.
// Es estado del proceso: se reinicia con la instancia.
type SafeMode struct {
	Enabled              bool
	TriggeredAt          *time.Time
	ConsecutiveHighDelay int
	QuietSince           *time.Time // último reset del contador
}

// ObserveHighDelay cuenta un tick con una señal pendiente por encima del umbral.
// Devuelve true solo en el tick que activa safe mode.
func (sm *SafeMode) ObserveHighDelay(now time.Time) bool {
	sm.ConsecutiveHighDelay++
	sm.QuietSince = nil
	if sm.ConsecutiveHighDelay >= SafeModeThreshold && !sm.Enabled {
		sm.Enabled = true
		t := now
		sm.TriggeredAt = &t
		return true
	}
	return false
}

// ObserveResolved resetea el contador si la señal se resolvió dentro del umbral.
func (sm *SafeMode) ObserveResolved(lag, threshold time.Duration, now time.Time) {
	if lag > threshold {
		return
	}
	sm.ConsecutiveHighDelay = 0
	t := now
	sm.QuietSince = &t
}

// MaybeRecover desactiva safe mode tras recovery de calma con el contador a cero.
// No reactiva la ejecución automática: eso queda en manos del operador.
func (sm *SafeMode) MaybeRecover(now time.Time, recovery time.Duration) bool {
	if !sm.Enabled || sm.ConsecutiveHighDelay != 0 {
		return false
	}
	since := sm.TriggeredAt
	if sm.QuietSince != nil && (since == nil || sm.QuietSince.After(*since)) {
		since = sm.QuietSince
	}
	if since == nil || now.Sub(*since) < recovery {
		return false
	}
	sm.Enabled = false
	sm.TriggeredAt = nil
	return true
}

// ForcesOff devuelve true mientras safe mode bloquea la ejecución automática.
func (sm *SafeMode) ForcesOff() bool {
	return sm.Enabled
}
