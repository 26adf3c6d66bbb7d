package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/hoopsarb/internal/adapters/notify"
	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

// --- helpers ---

func makeConsole() (*notify.Console, *bytes.Buffer, *bytes.Buffer) {
	var out, logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return notify.NewConsoleWriter(&out, logger), &out, &logs
}

func makeEvent(name domain.EventName, fields map[string]any) domain.Event {
	return domain.NewEvent(name, t0, "LAL vs BOS", fields)
}

// --- tests ---

func TestConsole_PublishLogsFieldsSorted(t *testing.T) {
	c, _, logs := makeConsole()

	c.Publish(context.Background(), makeEvent(domain.EventBlocked, map[string]any{
		"reason":    "cooldown_active",
		"point_gap": 2,
	}))

	line := logs.String()
	assert.Contains(t, line, "level=INFO")
	assert.Contains(t, line, "event: BLOQUEADO")
	assert.Contains(t, line, `game="LAL vs BOS"`)
	assert.Less(t, bytes.Index(logs.Bytes(), []byte("point_gap")), bytes.Index(logs.Bytes(), []byte("reason")))
}

func TestConsole_Levels(t *testing.T) {
	c, _, logs := makeConsole()

	c.Publish(context.Background(), makeEvent(domain.EventTick, nil))
	assert.Contains(t, logs.String(), "level=DEBUG")

	logs.Reset()
	c.Publish(context.Background(), makeEvent(domain.EventAutoStop, map[string]any{"reason": "max_feed_warnings"}))
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestConsole_Report(t *testing.T) {
	c, out, _ := makeConsole()
	s := domain.NewSession(t0)
	s.Iterations = 42
	s.Detected = 3
	s.BetsInSession = 1
	s.Blocked = 2

	c.Report(s)

	got := out.String()
	assert.Contains(t, got, s.ID[:8])
	assert.Contains(t, got, "42 iterations")
	assert.Contains(t, strings.ToUpper(got), "DETECTED")
	assert.Contains(t, strings.ToUpper(got), "BLOCKED")
}

func TestConsole_PrintDiagnostics(t *testing.T) {
	c, out, _ := makeConsole()

	c.PrintDiagnostics(domain.Diagnostics{
		WindowStart:  t0,
		TotalEvents:  100,
		WindowEvents: 10,
		CountsByEvent: map[domain.EventName]int{
			domain.EventDetected: 4,
			domain.EventBlocked:  2,
		},
		BlockedRate: 0.5,
		TopBlockReason: []domain.ReasonCount{
			{Event: domain.EventBlocked, Message: "cooldown_active", Count: 2},
		},
	})

	got := out.String()
	assert.Contains(t, got, "10 events in window (100 total)")
	assert.Contains(t, got, "blocked/detected 50.00%")
	assert.Contains(t, got, "cooldown_active")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("DETECTADO")), bytes.Index(out.Bytes(), []byte("BLOQUEADO")),
		"ordenado por frecuencia")
}

func TestConsole_PrintDiagnosticsWithoutReasons(t *testing.T) {
	c, out, _ := makeConsole()

	c.PrintDiagnostics(domain.Diagnostics{WindowStart: t0, CountsByEvent: map[domain.EventName]int{}})

	assert.NotContains(t, strings.ToUpper(out.String()), "REASON")
}
