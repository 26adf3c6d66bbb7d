package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Modos de ejecución soportados.
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

// Tipos de feed y de executor.
const (
	FeedHTTP     = "http"
	FeedWS       = "ws"
	ExecutorLog  = "log"
	ExecutorHTTP = "http"
)

// Config es la configuración completa del motor. La parte de política se
// recarga en cada tick; el resto (feeds, storage, notificadores) solo al arrancar.
type Config struct {
	Mode                 string  `yaml:"mode"` // live | simulated
	DecisionProviderKind string  `yaml:"decision_provider_kind"`
	AutoExecuteEnabled   bool    `yaml:"auto_execute_enabled"`
	LoopIntervalSeconds  float64 `yaml:"loop_interval_seconds"`
	SignalTTLSeconds     float64 `yaml:"signal_ttl_seconds"`
	CooldownSeconds      float64 `yaml:"cooldown_seconds"`
	DelayAlertSeconds    float64 `yaml:"delay_alert_threshold_seconds"`
	SafeModeRecoverySecs float64 `yaml:"safe_mode_recovery_seconds"`
	ProviderTimeoutSecs  float64 `yaml:"provider_timeout_seconds"`
	StakeAmount          float64 `yaml:"stake_amount"`
	MaxIterations        int     `yaml:"max_iterations"` // 0 = sin límite

	RiskFilters   RiskConfig       `yaml:"risk_filters"`
	DelayLearning DelayConfig      `yaml:"delay_learning"`
	Automation    AutomationConfig `yaml:"automation"`

	SelectedGame     string             `yaml:"selected_game"`
	WhitelistEnabled bool               `yaml:"whitelist_enabled"`
	WhitelistGames   []string           `yaml:"whitelist_games"`
	MinGameScore     float64            `yaml:"min_game_score"`
	GameScores       map[string]float64 `yaml:"game_scores"`

	Feeds    FeedsConfig    `yaml:"feeds"`
	Executor ExecutorConfig `yaml:"executor"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Redis    RedisConfig    `yaml:"redis"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// RiskConfig son los filtros del evaluador de riesgo.
type RiskConfig struct {
	Enabled          bool            `yaml:"enabled"`
	BetDelaySeconds  float64         `yaml:"bet_delay_seconds"`
	MinEVAfterDelay  float64         `yaml:"min_ev_after_delay"`
	EVDecayPerSecond float64         `yaml:"ev_decay_per_second"`
	EdgeByPoints     map[int]float64 `yaml:"ev_edge_by_points"`
	StakeScaleWithEV bool            `yaml:"stake_scale_with_ev"`
	MinStakeFactor   float64         `yaml:"min_stake_factor"`
	MaxStakeFactor   float64         `yaml:"max_stake_factor"`
}

// DelayConfig controla el aprendizaje online del delay.
type DelayConfig struct {
	Enabled               bool   `yaml:"enabled"`
	MaxSamples            int    `yaml:"max_samples"`
	ModelPath             string `yaml:"model_path"`
	MinSamplesForOverride int    `yaml:"min_samples_for_override"`
}

// AutomationConfig son los umbrales de parada forzada. 0 = sin límite.
type AutomationConfig struct {
	StopOnAuthRequired bool `yaml:"stop_on_auth_required"`
	MaxFeedWarnings    int  `yaml:"max_feed_warnings"`
	MaxBetsPerSession  int  `yaml:"max_bets_per_session"`
	MaxBlockedStreak   int  `yaml:"max_blocked_streak"`
}

// FeedsConfig describe de dónde salen los dos marcadores.
type FeedsConfig struct {
	Transmission FeedConfig      `yaml:"transmission"`
	Bet          FeedConfig      `yaml:"bet"`
	Simulated    SimulatedConfig `yaml:"simulated"`
}

// FeedConfig es un feed en vivo (HTTP o WebSocket).
type FeedConfig struct {
	Kind           string            `yaml:"kind"` // http | ws
	URL            string            `yaml:"url"`
	TimeoutSeconds float64           `yaml:"timeout_seconds"`
	RatePerSec     float64           `yaml:"rate_per_sec"`
	MaxRetries     int               `yaml:"max_retries"`
	Headers        map[string]string `yaml:"headers"`
}

// SimulatedConfig son las secuencias de marcadores [a, b] del modo simulado.
type SimulatedConfig struct {
	Transmission [][]int `yaml:"transmission"`
	Bet          [][]int `yaml:"bet"`
}

// ExecutorConfig elige cómo se coloca la apuesta.
type ExecutorConfig struct {
	Kind           string  `yaml:"kind"` // log | http
	URL            string  `yaml:"url"`
	Secret         string  `yaml:"secret"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// OracleConfig es el provider remoto de decisiones.
type OracleConfig struct {
	URL                    string  `yaml:"url"`
	APIKey                 string  `yaml:"api_key"`
	TimeoutSeconds         float64 `yaml:"timeout_seconds"`
	MaxFailures            uint32  `yaml:"max_failures"`
	BreakerCooldownSeconds float64 `yaml:"breaker_cooldown_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// TelegramConfig activa las alertas por Telegram.
type TelegramConfig struct {
	Enabled bool     `yaml:"enabled"`
	Token   string   `yaml:"token"`
	ChatID  int64    `yaml:"chat_id"`
	Events  []string `yaml:"events"` // vacío = lista por defecto
}

// RedisConfig publica los eventos en un stream. Addr vacío = desactivado.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// MetricsConfig expone /metrics. Addr vacío = desactivado.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// El YAML se decodifica sobre los valores por defecto, así que las keys ausentes
// conservan el default. Las variables de entorno tienen la última palabra.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Defaults devuelve la configuración por defecto, derivada de domain.DefaultPolicy.
func Defaults() *Config {
	p := domain.DefaultPolicy()
	rf := p.RiskFilters
	edges := make(map[int]float64, len(rf.EdgeByPoints))
	for k, v := range rf.EdgeByPoints {
		edges[k] = v
	}
	return &Config{
		Mode:                 p.Mode,
		DecisionProviderKind: p.DecisionProviderKind,
		LoopIntervalSeconds:  p.LoopInterval.Seconds(),
		SignalTTLSeconds:     p.SignalTTL.Seconds(),
		CooldownSeconds:      p.Cooldown.Seconds(),
		DelayAlertSeconds:    p.DelayAlertThreshold.Seconds(),
		SafeModeRecoverySecs: p.SafeModeRecovery.Seconds(),
		ProviderTimeoutSecs:  p.ProviderTimeout.Seconds(),
		StakeAmount:          p.StakeAmount,
		RiskFilters: RiskConfig{
			Enabled:          rf.Enabled,
			BetDelaySeconds:  rf.BetDelaySeconds,
			MinEVAfterDelay:  rf.MinEVAfterDelay,
			EVDecayPerSecond: rf.EVDecayPerSecond,
			EdgeByPoints:     edges,
			StakeScaleWithEV: rf.StakeScaleWithEV,
			MinStakeFactor:   rf.MinStakeFactor,
			MaxStakeFactor:   rf.MaxStakeFactor,
		},
		DelayLearning: DelayConfig{
			Enabled:               p.DelayLearning.Enabled,
			MaxSamples:            p.DelayLearning.MaxSamples,
			ModelPath:             p.DelayLearning.ModelPath,
			MinSamplesForOverride: p.DelayLearning.MinSamplesForOverride,
		},
		Executor: ExecutorConfig{Kind: ExecutorLog},
		Storage:  StorageConfig{DSN: "data/hoopsarb.db"},
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HOOPSARB_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("HOOPSARB_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("HOOPSARB_PROVIDER_URL"); v != "" {
		cfg.Oracle.URL = v
	}
	if v := os.Getenv("HOOPSARB_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.DecisionProviderKind = strings.ToLower(strings.TrimSpace(cfg.DecisionProviderKind))
	if cfg.Mode == "" {
		cfg.Mode = ModeLive
	}
	if cfg.DecisionProviderKind == "" {
		cfg.DecisionProviderKind = "local"
	}
	if cfg.Feeds.Transmission.Kind == "" {
		cfg.Feeds.Transmission.Kind = FeedHTTP
	}
	if cfg.Feeds.Bet.Kind == "" {
		cfg.Feeds.Bet.Kind = FeedHTTP
	}
	if cfg.Executor.Kind == "" {
		cfg.Executor.Kind = ExecutorLog
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "data/hoopsarb.db"
	}
	if cfg.GameScores == nil {
		cfg.GameScores = map[string]float64{}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate rechaza configuraciones incoherentes. Todos los errores envuelven
// domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Mode != ModeLive && c.Mode != ModeSimulated {
		add("unknown mode %q", c.Mode)
	}
	if c.LoopIntervalSeconds <= 0 {
		add("loop_interval_seconds must be > 0")
	}
	if c.SignalTTLSeconds <= 0 {
		add("signal_ttl_seconds must be > 0")
	}
	if c.CooldownSeconds < 0 {
		add("cooldown_seconds must be >= 0")
	}
	if c.DelayAlertSeconds <= 0 {
		add("delay_alert_threshold_seconds must be > 0")
	}
	if c.SafeModeRecoverySecs < 0 || c.ProviderTimeoutSecs < 0 {
		add("safe_mode_recovery_seconds and provider_timeout_seconds must be >= 0")
	}
	if c.StakeAmount <= 0 {
		add("stake_amount must be > 0")
	}
	if c.MaxIterations < 0 {
		add("max_iterations must be >= 0")
	}

	rf := c.RiskFilters
	if rf.BetDelaySeconds < 0 || rf.EVDecayPerSecond < 0 {
		add("risk_filters delays must be >= 0")
	}
	if rf.MinStakeFactor <= 0 || rf.MinStakeFactor > rf.MaxStakeFactor {
		add("risk_filters stake factors must satisfy 0 < min <= max (got %.2f, %.2f)",
			rf.MinStakeFactor, rf.MaxStakeFactor)
	}

	if c.DelayLearning.MaxSamples < 1 {
		add("delay_learning.max_samples must be >= 1")
	}
	if c.DelayLearning.MinSamplesForOverride < 0 {
		add("delay_learning.min_samples_for_override must be >= 0")
	}

	a := c.Automation
	if a.MaxFeedWarnings < 0 || a.MaxBetsPerSession < 0 || a.MaxBlockedStreak < 0 {
		add("automation thresholds must be >= 0")
	}
	if c.MinGameScore < 0 {
		add("min_game_score must be >= 0")
	}

	if c.Mode == ModeLive {
		for name, f := range map[string]FeedConfig{"transmission": c.Feeds.Transmission, "bet": c.Feeds.Bet} {
			if f.Kind != FeedHTTP && f.Kind != FeedWS {
				add("feeds.%s.kind must be http or ws", name)
			}
			if f.URL == "" {
				add("feeds.%s.url is required in live mode", name)
			}
		}
	}
	for _, seq := range [][][]int{c.Feeds.Simulated.Transmission, c.Feeds.Simulated.Bet} {
		for _, pair := range seq {
			if len(pair) != 2 {
				add("feeds.simulated entries must be [team_a, team_b]")
				break
			}
		}
	}

	switch c.Executor.Kind {
	case ExecutorLog:
	case ExecutorHTTP:
		if c.Executor.URL == "" {
			add("executor.url is required for the http executor")
		}
	default:
		add("unknown executor kind %q", c.Executor.Kind)
	}
	if c.DecisionProviderKind == "remote" && c.Oracle.URL == "" {
		add("oracle.url is required for the remote provider")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		add("telegram requires token and chat_id")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config.Validate: %w: %s", domain.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Policy construye el snapshot inmutable de política. Copia los slices y mapas
// para que el snapshot no comparta memoria con el Config.
func (c *Config) Policy() domain.PolicyConfig {
	edges := make(map[int]float64, len(c.RiskFilters.EdgeByPoints))
	for k, v := range c.RiskFilters.EdgeByPoints {
		edges[k] = v
	}
	scores := make(map[string]float64, len(c.GameScores))
	for k, v := range c.GameScores {
		scores[k] = v
	}

	return domain.PolicyConfig{
		Mode:                 c.Mode,
		DecisionProviderKind: c.DecisionProviderKind,
		AutoExecuteEnabled:   c.AutoExecuteEnabled,
		LoopInterval:         seconds(c.LoopIntervalSeconds),
		SignalTTL:            seconds(c.SignalTTLSeconds),
		Cooldown:             seconds(c.CooldownSeconds),
		DelayAlertThreshold:  seconds(c.DelayAlertSeconds),
		SafeModeRecovery:     seconds(c.SafeModeRecoverySecs),
		ProviderTimeout:      seconds(c.ProviderTimeoutSecs),
		StakeAmount:          c.StakeAmount,
		MaxIterations:        c.MaxIterations,
		RiskFilters: domain.RiskFilters{
			Enabled:          c.RiskFilters.Enabled,
			BetDelaySeconds:  c.RiskFilters.BetDelaySeconds,
			MinEVAfterDelay:  c.RiskFilters.MinEVAfterDelay,
			EVDecayPerSecond: c.RiskFilters.EVDecayPerSecond,
			EdgeByPoints:     edges,
			StakeScaleWithEV: c.RiskFilters.StakeScaleWithEV,
			MinStakeFactor:   c.RiskFilters.MinStakeFactor,
			MaxStakeFactor:   c.RiskFilters.MaxStakeFactor,
		},
		DelayLearning: domain.DelayLearning{
			Enabled:               c.DelayLearning.Enabled,
			MaxSamples:            c.DelayLearning.MaxSamples,
			ModelPath:             c.DelayLearning.ModelPath,
			MinSamplesForOverride: c.DelayLearning.MinSamplesForOverride,
		},
		Automation: domain.Automation{
			StopOnAuthRequired: c.Automation.StopOnAuthRequired,
			MaxFeedWarnings:    c.Automation.MaxFeedWarnings,
			MaxBetsPerSession:  c.Automation.MaxBetsPerSession,
			MaxBlockedStreak:   c.Automation.MaxBlockedStreak,
		},
		SelectedGame:     c.SelectedGame,
		WhitelistEnabled: c.WhitelistEnabled,
		WhitelistGames:   append([]string(nil), c.WhitelistGames...),
		MinGameScore:     c.MinGameScore,
		GameScores:       scores,
	}
}

// SimulatedScores convierte una secuencia [a, b] del YAML a snapshots.
func SimulatedScores(source string, seq [][]int) []domain.ScoreSnapshot {
	out := make([]domain.ScoreSnapshot, 0, len(seq))
	for _, pair := range seq {
		if len(pair) != 2 {
			continue
		}
		out = append(out, domain.ScoreSnapshot{TeamA: pair[0], TeamB: pair[1], Source: source})
	}
	return out
}

// TelegramEvents devuelve la lista de eventos permitidos como domain.EventName.
func (c *Config) TelegramEvents() []domain.EventName {
	out := make([]domain.EventName, 0, len(c.Telegram.Events))
	for _, e := range c.Telegram.Events {
		out = append(out, domain.EventName(strings.ToUpper(strings.TrimSpace(e))))
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
