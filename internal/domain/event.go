package domain

import "time"

// EventName es el nombre canónico de un evento observable.
type EventName string

const (
	EventTick              EventName = "TICK"
	EventDetected          EventName = "DETECTADO"
	EventDesync            EventName = "DESYNC"
	EventDelayPending      EventName = "DELAY_PENDING"
	EventDelayResolved     EventName = "DELAY_RESOLVED"
	EventDelayLearn        EventName = "DELAY_LEARN"
	EventExpired           EventName = "EXPIROU"
	EventBlocked           EventName = "BLOQUEADO"
	EventBetPlaced         EventName = "APOSTOU"
	EventSafeModeEnabled   EventName = "SAFE_MODE_ENABLED"
	EventSafeModeRecovered EventName = "SAFE_MODE_RECOVERED"
	EventAuthRequired      EventName = "AUTH_REQUIRED"
	EventFeedWarning       EventName = "FEED_WARNING"
	EventAutoStop          EventName = "AUTO_STOP"
	EventStop              EventName = "STOP"
	EventProviderError     EventName = "PROVIDER_ERROR"
	EventCompare           EventName = "COMPARE"
)

// Event es una transición observable del motor.
type Event struct {
	Name   EventName
	At     time.Time
	Game   string
	Fields map[string]any
}

// NewEvent crea un evento con los campos dados.
func NewEvent(name EventName, at time.Time, game string, fields map[string]any) Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return Event{Name: name, At: at, Game: game, Fields: fields}
}

// Message devuelve el texto corto del evento: "message" o "reason" si existen.
func (e Event) Message() string {
	for _, k := range []string{"message", "reason"} {
		if v, ok := e.Fields[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// Motivos de bloqueo fuera de gate/riesgo.
const (
	BlockAutoExecuteDisabled = "auto_execute_disabled"
	BlockSafeModeActive      = "safe_mode_active"
	BlockExecutorError       = "executor_error"
	BlockManualMode          = "manual_mode"
)
