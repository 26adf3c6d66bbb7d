// Package oracle implementa el Decision Provider remoto: un servicio HTTP
// que recibe los dos marcadores y devuelve la acción sugerida.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

const (
	defaultTimeout          = 5 * time.Second
	defaultMaxFailures      = 3
	defaultBreakerCooldown  = 30 * time.Second
	defaultHalfOpenRequests = 1
)

// Acciones del protocolo remoto.
const (
	actionNone     = "none"
	actionRegister = "register_discrepancy"
	actionExecute  = "execute_bet"
)

// Config configura el Client.
type Config struct {
	URL             string
	APIKey          string
	Timeout         time.Duration
	MaxFailures     uint32        // fallos consecutivos que abren el breaker
	BreakerCooldown time.Duration // tiempo en abierto antes de probar de nuevo
}

// Client es el provider remoto con circuit breaker.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

type scoreJSON struct {
	TeamA int `json:"team_a"`
	TeamB int `json:"team_b"`
}

type suggestRequest struct {
	Transmission scoreJSON `json:"transmission"`
	Bet          scoreJSON `json:"bet"`
	Stake        float64   `json:"stake"`
	Game         string    `json:"game,omitempty"`
	Iteration    int       `json:"iteration"`
}

type suggestResponse struct {
	Action   string  `json:"action"`
	Team     string  `json:"team,omitempty"`
	PointGap int     `json:"point_gap,omitempty"`
	Stake    float64 `json:"stake,omitempty"`
}

// NewClient crea el Client aplicando defaults a los campos vacíos.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}

	maxFailures := cfg.MaxFailures
	settings := gobreaker.Settings{
		Name:        "oracle",
		MaxRequests: defaultHalfOpenRequests,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("oracle: circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Name implementa ports.DecisionProvider.
func (c *Client) Name() string {
	return "remote"
}

// State devuelve el estado del breaker.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Suggest implementa ports.DecisionProvider. Los errores de red, HTTP o de
// protocolo se devuelven como domain.ProviderFailure.
func (c *Client) Suggest(ctx context.Context, trans, bet domain.ScoreSnapshot, stake float64, dc ports.DecisionContext) domain.CandidateAction {
	req := suggestRequest{
		Transmission: scoreJSON{TeamA: trans.TeamA, TeamB: trans.TeamB},
		Bet:          scoreJSON{TeamA: bet.TeamA, TeamB: bet.TeamB},
		Stake:        stake,
		Game:         dc.Game,
		Iteration:    dc.Iteration,
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.ProviderFailure("circuit open")
		}
		return domain.ProviderFailure(err.Error())
	}

	action, err := toAction(out.(suggestResponse), stake)
	if err != nil {
		slog.Warn("oracle: invalid response", "err", err)
		return domain.ProviderFailure(err.Error())
	}
	return action
}

func (c *Client) post(ctx context.Context, body suggestRequest) (suggestResponse, error) {
	var out suggestResponse

	b, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("oracle.post: marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(b))
	if err != nil {
		return out, fmt.Errorf("oracle.post: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("oracle.post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return out, fmt.Errorf("oracle.post: status %d: %s", resp.StatusCode, string(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("oracle.post: decode response: %w", err)
	}
	return out, nil
}

// toAction valida la respuesta y la convierte en la variante correspondiente.
func toAction(r suggestResponse, stake float64) (domain.CandidateAction, error) {
	switch r.Action {
	case "", actionNone:
		return domain.NoAction(), nil
	case actionRegister:
		team, err := parseTeam(r.Team)
		if err != nil {
			return domain.CandidateAction{}, err
		}
		return domain.RegisterDiscrepancy(team, r.PointGap), nil
	case actionExecute:
		team, err := parseTeam(r.Team)
		if err != nil {
			return domain.CandidateAction{}, err
		}
		if r.PointGap != 2 && r.PointGap != 3 {
			return domain.CandidateAction{}, fmt.Errorf("oracle: execute_bet with point_gap %d", r.PointGap)
		}
		if r.Stake > 0 {
			stake = r.Stake
		}
		return domain.ExecuteBet(team, r.PointGap, stake), nil
	default:
		return domain.CandidateAction{}, fmt.Errorf("oracle: unknown action %q", r.Action)
	}
}

func parseTeam(s string) (domain.Team, error) {
	switch s {
	case string(domain.TeamA), "team_a", "A":
		return domain.TeamA, nil
	case string(domain.TeamB), "team_b", "B":
		return domain.TeamB, nil
	}
	return "", fmt.Errorf("oracle: unknown team %q", s)
}
