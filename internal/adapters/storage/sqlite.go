package storage

// sqlite.go: histórico de eventos y ledger de apuestas.
//
// Estrategia:
//   - `events`: una fila por evento del engine. TICK no se persiste: es ruido
//     (2 por segundo) y no aporta a los diagnósticos.
//   - `bet_results`: una fila por APOSTOU (PENDING), pasa a RESOLVED cuando la
//     casa alcanza el marcador objetivo.
//   - Prune automático al arrancar: eventos > 30d.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ts           INTEGER NOT NULL, -- unix ms
    event_name   TEXT    NOT NULL,
    game         TEXT,
    message      TEXT,
    payload_json TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS bet_results (
    signal_id     TEXT PRIMARY KEY,
    ts            INTEGER NOT NULL,
    team          TEXT    NOT NULL,
    point_gap     INTEGER NOT NULL,
    stake         REAL    NOT NULL,
    ev            REAL    NOT NULL DEFAULT 0,
    delay_seconds REAL    NOT NULL DEFAULT 0,
    status        TEXT    NOT NULL,
    lag_seconds   REAL,
    resolved_ts   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_events_ts     ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_name   ON events(event_name);
CREATE INDEX IF NOT EXISTS idx_bets_ts       ON bet_results(ts);
CREATE INDEX IF NOT EXISTS idx_bets_status   ON bet_results(status);
`

const retentionEvents = 30 * 24 * time.Hour

// eventos que alimentan el ranking de motivos de bloqueo
var reasonEvents = []domain.EventName{domain.EventBlocked, domain.EventExpired, domain.EventProviderError}

// SQLiteStorage implementa ports.EventSink, ports.OutcomeStorage y
// ports.DiagnosticsReader usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage.NewSQLiteStorage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, now: time.Now}
	s.pruneOld(context.Background())
	return s, nil
}

// Publish implementa ports.EventSink. Los errores se loguean y se descartan:
// el histórico nunca para el loop.
func (s *SQLiteStorage) Publish(ctx context.Context, ev domain.Event) {
	if ev.Name == domain.EventTick {
		return
	}
	if err := s.RecordEvent(ctx, ev); err != nil {
		slog.Warn("storage: error recording event", "event", ev.Name, "err", err)
	}
}

// RecordEvent persiste un evento.
func (s *SQLiteStorage) RecordEvent(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev.Fields)
	if err != nil {
		return fmt.Errorf("storage.RecordEvent: marshal payload: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO events (ts, event_name, game, message, payload_json) VALUES (?, ?, ?, ?, ?)`,
		ev.At.UnixMilli(), string(ev.Name), ev.Game, ev.Message(), string(payload),
	); err != nil {
		return fmt.Errorf("storage.RecordEvent: insert: %w", err)
	}
	return nil
}

// RecordBet implementa ports.OutcomeStorage.
func (s *SQLiteStorage) RecordBet(ctx context.Context, rec domain.BetRecord) error {
	status := rec.Status
	if status == "" {
		status = "PENDING"
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bet_results (signal_id, ts, team, point_gap, stake, ev, delay_seconds, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(signal_id) DO UPDATE SET
			ts            = excluded.ts,
			stake         = excluded.stake,
			ev            = excluded.ev,
			delay_seconds = excluded.delay_seconds,
			status        = excluded.status
	`,
		rec.SignalID, rec.ExecutedAt.UnixMilli(), string(rec.Team), rec.PointGap,
		rec.Stake, rec.EVAfterDelay, rec.DelaySeconds, status,
	); err != nil {
		return fmt.Errorf("storage.RecordBet: upsert %s: %w", rec.SignalID, err)
	}
	return nil
}

// MarkBetResolved implementa ports.OutcomeStorage.
func (s *SQLiteStorage) MarkBetResolved(ctx context.Context, signalID string, lagSeconds float64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE bet_results SET status = 'RESOLVED', lag_seconds = ?, resolved_ts = ? WHERE signal_id = ?`,
		lagSeconds, s.now().UnixMilli(), signalID,
	); err != nil {
		return fmt.Errorf("storage.MarkBetResolved: update %s: %w", signalID, err)
	}
	return nil
}

// GetBets devuelve las apuestas registradas desde from, las más recientes primero.
func (s *SQLiteStorage) GetBets(ctx context.Context, from time.Time) ([]domain.BetRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_id, ts, team, point_gap, stake, ev, delay_seconds, status
		FROM bet_results
		WHERE ts >= ?
		ORDER BY ts DESC
	`, from.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage.GetBets: query: %w", err)
	}
	defer rows.Close()

	var out []domain.BetRecord
	for rows.Next() {
		var rec domain.BetRecord
		var ts int64
		var team string
		if err := rows.Scan(&rec.SignalID, &ts, &team, &rec.PointGap, &rec.Stake,
			&rec.EVAfterDelay, &rec.DelaySeconds, &rec.Status); err != nil {
			return nil, fmt.Errorf("storage.GetBets: scan row: %w", err)
		}
		rec.Team = domain.Team(team)
		rec.ExecutedAt = time.UnixMilli(ts).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Diagnostics implementa ports.DiagnosticsReader: conteos por evento en la
// ventana, tasas de bloqueo/expiración/error frente a detectados y los motivos
// más frecuentes.
func (s *SQLiteStorage) Diagnostics(ctx context.Context, window time.Duration, limit int) (domain.Diagnostics, error) {
	if window < time.Minute {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 20
	}
	start := s.now().Add(-window)
	d := domain.Diagnostics{
		WindowStart:   start.UTC(),
		CountsByEvent: make(map[domain.EventName]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&d.TotalEvents); err != nil {
		return d, fmt.Errorf("storage.Diagnostics: total: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_name, COUNT(*) AS c
		FROM events
		WHERE ts >= ?
		GROUP BY event_name
	`, start.UnixMilli())
	if err != nil {
		return d, fmt.Errorf("storage.Diagnostics: counts: %w", err)
	}
	for rows.Next() {
		var name string
		var c int
		if err := rows.Scan(&name, &c); err != nil {
			rows.Close()
			return d, fmt.Errorf("storage.Diagnostics: scan count: %w", err)
		}
		d.CountsByEvent[domain.EventName(name)] = c
		d.WindowEvents += c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return d, fmt.Errorf("storage.Diagnostics: counts: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(reasonEvents)), ",")
	args := []any{start.UnixMilli()}
	for _, n := range reasonEvents {
		args = append(args, string(n))
	}
	args = append(args, limit)
	reasons, err := s.db.QueryContext(ctx, `
		SELECT event_name, COALESCE(message, ''), COUNT(*) AS c
		FROM events
		WHERE ts >= ? AND event_name IN (`+placeholders+`)
		GROUP BY event_name, message
		ORDER BY c DESC, event_name ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return d, fmt.Errorf("storage.Diagnostics: reasons: %w", err)
	}
	defer reasons.Close()
	for reasons.Next() {
		var rc domain.ReasonCount
		var name string
		if err := reasons.Scan(&name, &rc.Message, &rc.Count); err != nil {
			return d, fmt.Errorf("storage.Diagnostics: scan reason: %w", err)
		}
		rc.Event = domain.EventName(name)
		d.TopBlockReason = append(d.TopBlockReason, rc)
	}
	if err := reasons.Err(); err != nil {
		return d, fmt.Errorf("storage.Diagnostics: reasons: %w", err)
	}

	denom := float64(max(1, d.CountsByEvent[domain.EventDetected]))
	d.BlockedRate = round4(float64(d.CountsByEvent[domain.EventBlocked]) / denom)
	d.ExpiredRate = round4(float64(d.CountsByEvent[domain.EventExpired]) / denom)
	d.ErrorRate = round4(float64(d.CountsByEvent[domain.EventProviderError]) / denom)
	return d, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina eventos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := s.now().Add(-retentionEvents).UnixMilli()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE ts < ?`, cutoff); err != nil {
		slog.Debug("storage: prune failed", "err", err)
	}
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
