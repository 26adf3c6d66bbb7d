package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Console loguea cada evento con slog e imprime los reportes en tabla.
type Console struct {
	out    io.Writer
	logger *slog.Logger
}

// NewConsole crea un Console que escribe los reportes a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, logger: slog.Default()}
}

// NewConsoleWriter crea un Console para tests.
func NewConsoleWriter(w io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{out: w, logger: logger}
}

// Publish implementa ports.EventSink.
func (c *Console) Publish(ctx context.Context, ev domain.Event) {
	attrs := []any{"event", string(ev.Name)}
	if ev.Game != "" {
		attrs = append(attrs, "game", ev.Game)
	}
	for _, k := range sortedKeys(ev.Fields) {
		attrs = append(attrs, k, ev.Fields[k])
	}
	c.logger.Log(ctx, levelFor(ev.Name), "event: "+string(ev.Name), attrs...)
}

// Report implementa engine.Reporter: imprime el reporte de la sesión.
func (c *Console) Report(s domain.Session) {
	elapsed := time.Since(s.StartedAt).Round(time.Second)
	fmt.Fprintf(c.out, "\nSession %s | %d iterations, %s\n", shortID(s.ID), s.Iterations, elapsed)

	table := tablewriter.NewWriter(c.out)
	table.Header("Detected", "Bets", "Blocked", "Expired", "Errors", "Feed warnings")
	table.Append(
		fmt.Sprintf("%d", s.Detected),
		fmt.Sprintf("%d", s.BetsInSession),
		fmt.Sprintf("%d", s.Blocked),
		fmt.Sprintf("%d", s.Expired),
		fmt.Sprintf("%d", s.Errors),
		fmt.Sprintf("%d", s.FeedWarnings),
	)
	table.Render()
}

// PrintDiagnostics imprime el resumen del histórico de eventos.
func (c *Console) PrintDiagnostics(d domain.Diagnostics) {
	fmt.Fprintf(c.out, "\nDiagnostics since %s: %d events in window (%d total)\n",
		d.WindowStart.Local().Format("2006-01-02 15:04"), d.WindowEvents, d.TotalEvents)

	counts := tablewriter.NewWriter(c.out)
	counts.Header("Event", "Count")
	names := make([]string, 0, len(d.CountsByEvent))
	for name := range d.CountsByEvent {
		names = append(names, string(name))
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := d.CountsByEvent[domain.EventName(names[i])], d.CountsByEvent[domain.EventName(names[j])]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		counts.Append(name, fmt.Sprintf("%d", d.CountsByEvent[domain.EventName(name)]))
	}
	counts.Render()

	fmt.Fprintf(c.out, "  blocked/detected %.2f%% | expired/detected %.2f%% | errors/detected %.2f%%\n",
		d.BlockedRate*100, d.ExpiredRate*100, d.ErrorRate*100)

	if len(d.TopBlockReason) == 0 {
		return
	}
	reasons := tablewriter.NewWriter(c.out)
	reasons.Header("#", "Event", "Reason", "Count")
	for i, r := range d.TopBlockReason {
		reasons.Append(fmt.Sprintf("%d", i+1), string(r.Event), r.Message, fmt.Sprintf("%d", r.Count))
	}
	reasons.Render()
}

// levelFor asigna el nivel de log a cada evento: el ruido por tick va a debug.
func levelFor(name domain.EventName) slog.Level {
	switch name {
	case domain.EventTick, domain.EventCompare:
		return slog.LevelDebug
	case domain.EventFeedWarning, domain.EventAuthRequired, domain.EventAutoStop,
		domain.EventSafeModeEnabled, domain.EventProviderError, domain.EventDelayPending:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
