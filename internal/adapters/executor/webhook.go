package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

// Webhook envía la orden por POST a un servicio externo que coloca la apuesta.
type Webhook struct {
	http   *http.Client
	url    string
	secret string
}

// betRequest es el cuerpo JSON de POST <url>.
type betRequest struct {
	SignalID string `json:"signal_id"`
	Team     string `json:"team"`
	PointGap int    `json:"point_gap"`
	Stake    string `json:"stake"` // dos decimales, sin errores de float
}

type betResponse struct {
	Success  bool   `json:"success"`
	BetID    string `json:"bet_id"`
	ErrorMsg string `json:"error_msg"`
}

// NewWebhook crea un Webhook. secret se envía en X-Webhook-Secret si no está vacío.
func NewWebhook(url, secret string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{
		http:   &http.Client{Timeout: timeout},
		url:    url,
		secret: secret,
	}
}

// Execute implementa ports.Executor. Un rechazo del servicio no es error:
// vuelve como Accepted=false con el mensaje recibido.
func (w *Webhook) Execute(ctx context.Context, o domain.BetOrder) (domain.BetResult, error) {
	body, err := json.Marshal(betRequest{
		SignalID: o.SignalID,
		Team:     string(o.Team),
		PointGap: o.PointGap,
		Stake:    decimal.NewFromFloat(o.Stake).StringFixed(2),
	})
	if err != nil {
		return domain.BetResult{}, fmt.Errorf("executor.Webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return domain.BetResult{}, fmt.Errorf("executor.Webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set("X-Webhook-Secret", w.secret)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return domain.BetResult{}, fmt.Errorf("executor.Webhook: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return domain.BetResult{}, fmt.Errorf("executor.Webhook: status %d: %s", resp.StatusCode, string(msg))
	}

	var out betResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.BetResult{}, fmt.Errorf("executor.Webhook: decode: %w", err)
	}
	if !out.Success {
		msg := out.ErrorMsg
		if msg == "" {
			msg = "rejected"
		}
		return domain.BetResult{Accepted: false, Message: msg}, nil
	}
	return domain.BetResult{Accepted: true, Reference: out.BetID}, nil
}
