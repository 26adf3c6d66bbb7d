package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

const telegramQueueSize = 64

// DefaultTelegramEvents son los eventos que se notifican si no se configura otra lista.
var DefaultTelegramEvents = []domain.EventName{
	domain.EventDetected,
	domain.EventBetPlaced,
	domain.EventAuthRequired,
	domain.EventAutoStop,
	domain.EventSafeModeEnabled,
}

// telegramSender es lo que necesitamos de *tgbotapi.BotAPI.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram envía los eventos permitidos a un chat. El envío es asíncrono:
// Publish encola y nunca bloquea el tick; si la cola está llena el evento se descarta.
type Telegram struct {
	api     telegramSender
	chatID  int64
	allowed map[domain.EventName]bool

	queue     chan domain.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewTelegram conecta con la API de Telegram usando el token dado.
func NewTelegram(token string, chatID int64, allowed []domain.EventName) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	slog.Info("notify: telegram bot connected", "username", api.Self.UserName)
	return newTelegram(api, chatID, allowed), nil
}

func newTelegram(api telegramSender, chatID int64, allowed []domain.EventName) *Telegram {
	if len(allowed) == 0 {
		allowed = DefaultTelegramEvents
	}
	t := &Telegram{
		api:     api,
		chatID:  chatID,
		allowed: make(map[domain.EventName]bool, len(allowed)),
		queue:   make(chan domain.Event, telegramQueueSize),
		done:    make(chan struct{}),
	}
	for _, name := range allowed {
		t.allowed[name] = true
	}
	go t.loop()
	return t
}

// Allowed devuelve true si el evento pasa el filtro.
func (t *Telegram) Allowed(name domain.EventName) bool {
	return t.allowed[name]
}

// Publish implementa ports.EventSink.
func (t *Telegram) Publish(_ context.Context, ev domain.Event) {
	if !t.allowed[ev.Name] {
		return
	}
	select {
	case t.queue <- ev:
	default:
		slog.Warn("notify: telegram queue full, dropping event", "event", ev.Name)
	}
}

// Close vacía la cola y para el worker. Idempotente.
func (t *Telegram) Close() error {
	t.closeOnce.Do(func() {
		close(t.queue)
		<-t.done
	})
	return nil
}

func (t *Telegram) loop() {
	defer close(t.done)
	for ev := range t.queue {
		msg := tgbotapi.NewMessage(t.chatID, FormatEvent(ev))
		msg.DisableWebPagePreview = true
		if _, err := t.api.Send(msg); err != nil {
			slog.Warn("notify: telegram send failed", "event", ev.Name, "err", err)
		}
	}
}

// FormatEvent devuelve el texto plano de un evento para mensajería.
func FormatEvent(ev domain.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", iconFor(ev.Name), ev.Name)
	if ev.Game != "" {
		fmt.Fprintf(&sb, " · %s", ev.Game)
	}
	sb.WriteString("\n")
	for _, k := range sortedKeys(ev.Fields) {
		fmt.Fprintf(&sb, "%s: %v\n", k, ev.Fields[k])
	}
	fmt.Fprintf(&sb, "%s", ev.At.Format("15:04:05"))
	return sb.String()
}

func iconFor(name domain.EventName) string {
	switch name {
	case domain.EventDetected:
		return "🚨"
	case domain.EventBetPlaced:
		return "✅"
	case domain.EventBlocked, domain.EventExpired:
		return "⛔"
	case domain.EventAuthRequired, domain.EventAutoStop, domain.EventSafeModeEnabled:
		return "⚠️"
	default:
		return "•"
	}
}
