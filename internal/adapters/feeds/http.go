// Package feeds implementa las fuentes de marcador: HTTP, WebSocket y simulada.
// Ninguna devuelve error al engine: los fallos se convierten en snapshots degradados.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

const (
	defaultTimeout    = 3 * time.Second
	defaultRatePerSec = 10
	defaultRetries    = 2
	defaultRetryWait  = 100 * time.Millisecond
)

// ErrAuthRequired indica que el feed pide credenciales (401/403).
var ErrAuthRequired = errors.New("feed requires authentication")

// scorePayload es el JSON que devuelven los feeds.
type scorePayload struct {
	TeamA        int  `json:"team_a"`
	TeamB        int  `json:"team_b"`
	AuthRequired bool `json:"auth_required,omitempty"`
}

// HTTPConfig configura una HTTPSource.
type HTTPConfig struct {
	URL        string
	Source     string // transmission | bet
	Timeout    time.Duration
	RatePerSec float64
	MaxRetries int
	RetryWait  time.Duration
	Headers    map[string]string
}

// HTTPSource consulta el marcador por HTTP con rate limiting y retries.
type HTTPSource struct {
	http    *http.Client
	cfg     HTTPConfig
	limiter *rate.Limiter

	closeOnce sync.Once
}

// NewHTTPSource crea una HTTPSource aplicando los defaults a los campos vacíos.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	return &HTTPSource{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

// GetScore implementa ports.ScoreSource.
func (s *HTTPSource) GetScore(ctx context.Context) domain.ScoreSnapshot {
	var p scorePayload
	if err := s.doWithRetry(ctx, &p); err != nil {
		slog.Warn("feeds: http fetch failed", "source", s.cfg.Source, "err", err)
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

// Close implementa ports.ScoreSource.
func (s *HTTPSource) Close() error {
	s.closeOnce.Do(func() {
		s.http.CloseIdleConnections()
	})
	return nil
}

// doWithRetry hace el GET con backoff exponencial. 401/403 no se reintentan.
func (s *HTTPSource) doWithRetry(ctx context.Context, out *scorePayload) error {
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("feeds.HTTPSource: rate limiter: %w", err)
		}

		resp, err := s.get(ctx)
		if err != nil {
			if attempt == s.cfg.MaxRetries {
				return fmt.Errorf("feeds.HTTPSource: request failed after %d retries: %w", s.cfg.MaxRetries, err)
			}
			s.sleep(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("feeds.HTTPSource: status %d: %w", resp.StatusCode, ErrAuthRequired)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			if attempt == s.cfg.MaxRetries {
				return fmt.Errorf("feeds.HTTPSource: status %d after %d retries", resp.StatusCode, s.cfg.MaxRetries)
			}
			s.sleep(ctx, attempt)
			continue
		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("feeds.HTTPSource: client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("feeds.HTTPSource: decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("feeds.HTTPSource: exhausted %d retries", s.cfg.MaxRetries)
}

func (s *HTTPSource) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	return s.http.Do(req)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (s *HTTPSource) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * s.cfg.RetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
