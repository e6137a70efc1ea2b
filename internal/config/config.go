package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	EventsDriverNoop   = "noop"
	EventsDriverPubSub = "pubsub"
)

// lockTTLMargin is the lease time left over after the two gateway calls of a capture.
const lockTTLMargin = 15 * time.Second

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Gateway     GatewayConfig
	Events      EventsConfig
	Telemetry   TelemetryConfig
	Service     ServiceConfig
}

type HTTPConfig struct {
	Port          int           `envconfig:"API_HTTP_PORT" default:"8080"`
	MetricsPath   string        `envconfig:"API_METRICS_PATH" default:"/metrics"`
	ShutdownGrace time.Duration `envconfig:"API_SHUTDOWN_GRACE" default:"15s"`
}

type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"postgres"`
}

type DatabaseConfig struct {
	URL         string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`
	// MigrationsPath overrides the embedded schema with SQL files from disk.
	MigrationsPath string `envconfig:"MIGRATIONS_PATH"`

	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        int    `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"chakucart"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxLifetime string `envconfig:"DB_MAX_CONN_LIFETIME" default:"5m"`
}

type RedisConfig struct {
	Enabled bool          `envconfig:"REDIS_ENABLED" default:"false"`
	URL     string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	LockTTL time.Duration `envconfig:"REDIS_LOCK_TTL" default:"75s"`
}

// IdempotencyConfig bounds how long a client may retry with the same Idempotency-Key.
type IdempotencyConfig struct {
	TTL           time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	PurgeInterval time.Duration `envconfig:"IDEMPOTENCY_PURGE_INTERVAL" default:"1h"`
}

type GatewayConfig struct {
	BaseURL            string          `envconfig:"GATEWAY_BASE_URL" default:"https://api.paystack.co"`
	SecretKey          string          `envconfig:"GATEWAY_SECRET_KEY"`
	Currency           string          `envconfig:"GATEWAY_CURRENCY" default:"ZAR"`
	Timeout            time.Duration   `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
	GoodsSubaccount    string          `envconfig:"GATEWAY_GOODS_SUBACCOUNT"`
	DeliverySubaccount string          `envconfig:"GATEWAY_DELIVERY_SUBACCOUNT"`
	ProviderFeePercent decimal.Decimal `envconfig:"GATEWAY_PROVIDER_FEE_PERCENT" default:"10"`
	CardLinkAmount     int64           `envconfig:"GATEWAY_CARD_LINK_AMOUNT" default:"100"`
	PreAuthCurrencies  []string        `envconfig:"GATEWAY_PREAUTH_CURRENCIES" default:"NGN,GHS"`
	CallbackURL        string          `envconfig:"GATEWAY_CALLBACK_URL"`
}

type EventsConfig struct {
	Driver       string `envconfig:"EVENTS_DRIVER" default:"noop"`
	GCPProjectID string `envconfig:"GCP_PROJECT_ID"`
	Topic        string `envconfig:"EVENTS_TOPIC" default:"chakucart-order-events"`
}

type TelemetryConfig struct {
	LogLevel      string  `envconfig:"LOG_LEVEL" default:"info"`
	OTelEndpoint  string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTracing bool    `envconfig:"OTEL_ENABLE_TRACING" default:"true"`
	EnableMetrics bool    `envconfig:"OTEL_ENABLE_METRICS" default:"true"`
	SampleRate    float64 `envconfig:"OTEL_SAMPLE_RATE" default:"1.0"`
}

// Level maps LOG_LEVEL onto slog, falling back to info for unknown names.
func (t TelemetryConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(t.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type ServiceConfig struct {
	Name        string `envconfig:"API_SERVICE_NAME" default:"chakucart-api"`
	Version     string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// LoadDotEnv reads .env files into the process environment. A missing file is not an error.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults when needed.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.buildURL()
	}
	cfg.Gateway.Currency = strings.ToUpper(strings.TrimSpace(cfg.Gateway.Currency))
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Events.Driver {
	case EventsDriverNoop:
	case EventsDriverPubSub:
		if c.Events.GCPProjectID == "" || c.Events.Topic == "" {
			return errors.New("GCP_PROJECT_ID and EVENTS_TOPIC are required for the pubsub events driver")
		}
	default:
		return fmt.Errorf("invalid EVENTS_DRIVER %q", c.Events.Driver)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid API_HTTP_PORT %d", c.HTTP.Port)
	}
	if c.Gateway.ProviderFeePercent.IsNegative() || c.Gateway.ProviderFeePercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("GATEWAY_PROVIDER_FEE_PERCENT must be at least 0 and below 100, got %s", c.Gateway.ProviderFeePercent)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.Gateway.Timeout)
	}
	// Capturing an order holds its lock across a verify and a charge.
	if minTTL := 2*c.Gateway.Timeout + lockTTLMargin; c.Redis.Enabled && c.Redis.LockTTL < minTTL {
		return fmt.Errorf("REDIS_LOCK_TTL %s must be at least %s for GATEWAY_TIMEOUT %s", c.Redis.LockTTL, minTTL, c.Gateway.Timeout)
	}
	if c.Idempotency.TTL <= 0 || c.Idempotency.PurgeInterval <= 0 {
		return errors.New("IDEMPOTENCY_TTL and IDEMPOTENCY_PURGE_INTERVAL must be positive")
	}
	if c.Gateway.CardLinkAmount <= 0 {
		return fmt.Errorf("GATEWAY_CARD_LINK_AMOUNT must be positive, got %d", c.Gateway.CardLinkAmount)
	}
	return nil
}

func (d DatabaseConfig) buildURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	q.Set("pool_max_conns", fmt.Sprint(d.MaxConns))
	q.Set("pool_min_conns", fmt.Sprint(d.MinConns))
	q.Set("pool_max_conn_lifetime", d.MaxLifetime)
	u.RawQuery = q.Encode()
	return u.String()
}
