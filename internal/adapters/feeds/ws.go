package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// WSConfig configura una WSSource.
type WSConfig struct {
	URL     string
	Source  string
	Timeout time.Duration // handshake y lectura
	Headers map[string]string
}

// WSSource pide el marcador por WebSocket: envía {"action":"get_score"} y
// lee un {"team_a","team_b"}. Si la conexión falla se reabre en el siguiente tick.
type WSSource struct {
	cfg    WSConfig
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

type wsRequest struct {
	Action string `json:"action"`
}

// NewWSSource crea una WSSource. La conexión se abre en el primer GetScore.
func NewWSSource(cfg WSConfig) *WSSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &WSSource{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
	}
}

// GetScore implementa ports.ScoreSource.
func (s *WSSource) GetScore(ctx context.Context) domain.ScoreSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.request(ctx)
	if err != nil {
		slog.Warn("feeds: websocket fetch failed", "source", s.cfg.Source, "err", err)
		s.dropConn()
		snap := domain.DegradedSnapshot(s.cfg.Source, err)
		snap.AuthRequired = errors.Is(err, ErrAuthRequired)
		return snap
	}
	return domain.ScoreSnapshot{
		TeamA:        p.TeamA,
		TeamB:        p.TeamB,
		Source:       s.cfg.Source,
		AuthRequired: p.AuthRequired,
	}
}

func (s *WSSource) request(ctx context.Context) (scorePayload, error) {
	var p scorePayload
	if s.closed {
		return p, fmt.Errorf("feeds.WSSource: source closed")
	}
	if s.conn == nil {
		header := http.Header{}
		for k, v := range s.cfg.Headers {
			header.Set(k, v)
		}
		conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				return p, fmt.Errorf("feeds.WSSource: dial status %d: %w", resp.StatusCode, ErrAuthRequired)
			}
			return p, fmt.Errorf("feeds.WSSource: dial: %w", err)
		}
		s.conn = conn
		slog.Debug("feeds: websocket connected", "source", s.cfg.Source, "url", s.cfg.URL)
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.SetReadDeadline(deadline)

	if err := s.conn.WriteJSON(wsRequest{Action: "get_score"}); err != nil {
		return p, fmt.Errorf("feeds.WSSource: write: %w", err)
	}
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return p, fmt.Errorf("feeds.WSSource: read: %w", err)
	}
	if err := json.Unmarshal(msg, &p); err != nil {
		return p, fmt.Errorf("feeds.WSSource: decode: %w", err)
	}
	return p, nil
}

func (s *WSSource) dropConn() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close implementa ports.ScoreSource. Idempotente.
func (s *WSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("feeds.WSSource.Close: %w", err)
	}
	return nil
}
