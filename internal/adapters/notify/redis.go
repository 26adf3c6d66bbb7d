package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

const (
	defaultStream       = "hoopsarb:events"
	defaultStreamMaxLen = 10000
	redisQueueSize      = 256
	redisAppendTimeout  = 2 * time.Second
)

// streamAdder es lo que necesitamos de *redis.Client.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStream publica los eventos en un stream de Redis (XADD con MAXLEN ~).
// Igual que Telegram, Publish solo encola; cada XADD tiene su propio timeout.
type RedisStream struct {
	rdb     streamAdder
	closer  func() error
	stream  string
	maxLen  int64
	timeout time.Duration

	mu        sync.Mutex
	closed    bool
	queue     chan *redis.XAddArgs
	done      chan struct{}
	closeOnce sync.Once
}

// streamPayload es el JSON de cada entrada del stream.
type streamPayload struct {
	Event  string         `json:"event"`
	At     time.Time      `json:"at"`
	Game   string         `json:"game,omitempty"`
	Fields map[string]any `json:"fields"`
}

// NewRedisStream conecta con Redis y verifica la conexión con PING.
func NewRedisStream(ctx context.Context, addr, password string, db int, stream string) (*RedisStream, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       addr,
		Password:   password,
		DB:         db,
		MaxRetries: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("notify.NewRedisStream: ping %s: %w", addr, err)
	}
	s := newRedisStream(rdb, stream)
	s.closer = rdb.Close
	return s, nil
}

func newRedisStream(rdb streamAdder, stream string) *RedisStream {
	if stream == "" {
		stream = defaultStream
	}
	r := &RedisStream{
		rdb:     rdb,
		stream:  stream,
		maxLen:  defaultStreamMaxLen,
		timeout: redisAppendTimeout,
		queue:   make(chan *redis.XAddArgs, redisQueueSize),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Publish implementa ports.EventSink. TICK no se publica.
func (r *RedisStream) Publish(_ context.Context, ev domain.Event) {
	if ev.Name == domain.EventTick {
		return
	}
	payload, err := EncodeEvent(ev)
	if err != nil {
		slog.Warn("notify: redis encode failed", "event", ev.Name, "err", err)
		return
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event":   string(ev.Name),
			"payload": payload,
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- args:
	default:
		slog.Warn("notify: redis queue full, dropping event", "event", ev.Name)
	}
}

// Close vacía la cola, para el worker y cierra la conexión. Idempotente.
func (r *RedisStream) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done

		if r.closer != nil {
			err = r.closer()
		}
	})
	return err
}

func (r *RedisStream) loop() {
	defer close(r.done)
	for args := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.rdb.XAdd(ctx, args).Err()
		cancel()
		if err != nil {
			slog.Warn("notify: redis stream append failed", "stream", r.stream, "err", err)
		}
	}
}

// EncodeEvent serializa un evento al formato del stream.
func EncodeEvent(ev domain.Event) ([]byte, error) {
	fields := ev.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(streamPayload{
		Event:  string(ev.Name),
		At:     ev.At.UTC(),
		Game:   ev.Game,
		Fields: fields,
	})
	if err != nil {
		return nil, fmt.Errorf("notify.EncodeEvent: %w", err)
	}
	return b, nil
}
