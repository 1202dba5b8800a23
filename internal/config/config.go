package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

const envPrefix = "DONATIONS_"

const (
	ModeLive = "live"
	ModeMock = "mock"
)

type Config struct {
	Primary   Primary         `koanf:"primary"`
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	SQLite    SQLiteConfig    `koanf:"sqlite"`
	Dynamo    DynamoConfig    `koanf:"dynamo"`
	Providers ProvidersConfig `koanf:"providers"`
	Retry     RetryConfig     `koanf:"retry"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Notify    NotifyConfig    `koanf:"notify"`
	Logger    LoggerConfig    `koanf:"logger"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Reconcile ReconcileConfig `koanf:"reconcile"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
	// Mode must be set explicitly. Missing credentials never imply mock.
	Mode            string `koanf:"mode" validate:"required,oneof=live mock"`
	StrictReference bool   `koanf:"strict_reference"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
	PublicBaseURL  string        `koanf:"public_base_url" validate:"required,url"`
	FrontendURL    string        `koanf:"frontend_url" validate:"required,url"`
	TrustProxy     bool          `koanf:"trust_proxy"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=postgres sqlite dynamodb"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type DynamoConfig struct {
	Region string `koanf:"region"`
	Table  string `koanf:"table"`
	// Endpoint overrides the AWS endpoint, e.g. for DynamoDB Local.
	Endpoint string `koanf:"endpoint"`
}

type ProvidersConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"required"`
	Stripe  StripeConfig  `koanf:"stripe"`
	Khalti  KhaltiConfig  `koanf:"khalti"`
	Esewa   EsewaConfig   `koanf:"esewa"`
	Mock    MockConfig    `koanf:"mock"`
}

type StripeConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SecretKey     string `koanf:"secret_key"`
	WebhookSecret string `koanf:"webhook_secret"`
}

type KhaltiConfig struct {
	Enabled    bool   `koanf:"enabled"`
	SecretKey  string `koanf:"secret_key"`
	BaseURL    string `koanf:"base_url"`
	WebsiteURL string `koanf:"website_url"`
}

type EsewaConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ProductCode string `koanf:"product_code"`
	SecretKey   string `koanf:"secret_key"`
	FormURL     string `koanf:"form_url"`
	StatusURL   string `koanf:"status_url"`
}

type MockConfig struct {
	Enabled bool `koanf:"enabled"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int32         `koanf:"max_retries"`
}

type RateLimitConfig struct {
	Backend string        `koanf:"backend" validate:"required,oneof=memory dynamodb"`
	Limit   int           `koanf:"limit" validate:"required,gt=0"`
	Window  time.Duration `koanf:"window" validate:"required"`
	Table   string        `koanf:"table"`
}

type NotifyConfig struct {
	// URL of the receipt mailer. Empty means receipts are only logged.
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	// ArchiveBucket, when set, also stores every receipt as JSON in S3.
	ArchiveBucket   string `koanf:"archive_bucket"`
	ArchiveRegion   string `koanf:"archive_region"`
	ArchiveEndpoint string `koanf:"archive_endpoint"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

type ReconcileConfig struct {
	// Interval runs the reconciler inside serve. Zero leaves it to the
	// reconcile command.
	Interval  time.Duration `koanf:"interval"`
	OlderThan time.Duration `koanf:"older_than" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required,gt=0"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"primary.env":                 "development",
		"server.port":                 "8080",
		"server.read_timeout":         "10s",
		"server.write_timeout":        "30s",
		"server.idle_timeout":         "60s",
		"server.request_timeout":      "25s",
		"store.driver":                "postgres",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"sqlite.path":                 "donations.db",
		"providers.timeout":           "15s",
		"providers.khalti.base_url":   "https://dev.khalti.com/api/v2",
		"providers.esewa.form_url":    "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		"providers.esewa.status_url":  "https://rc.esewa.com.np/api/epay/transaction/status/",
		"retry.base_delay":            "500ms",
		"retry.max_retries":           2,
		"ratelimit.backend":           "memory",
		"ratelimit.limit":             20,
		"ratelimit.window":            "1m",
		"notify.timeout":              "10s",
		"logger.level":                "info",
		"logger.format":               "json",
		"tracing.service_name":        "donation-gateway",
		"reconcile.older_than":        "15m",
		"reconcile.batch_size":        100,
	}
}

// LoadConfig layers defaults, an optional YAML file and DONATIONS_ env vars,
// in that order.
func LoadConfig(path string) (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			logger.Error("failed to load config file", "path", path, "error", err)
			return nil, err
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	if err := mainConfig.check(); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// check covers the rules struct tags cannot express.
func (c *Config) check() error {
	if c.Primary.Mode == ModeLive {
		c.Primary.StrictReference = true
		if c.Providers.Mock.Enabled {
			return fmt.Errorf("providers.mock.enabled is not allowed in live mode")
		}
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("database.host, database.name and database.user are required for the postgres store")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required for the sqlite store")
		}
	case "dynamodb":
		if c.Dynamo.Table == "" {
			return fmt.Errorf("dynamo.table is required for the dynamodb store")
		}
	}

	if c.RateLimit.Backend == "dynamodb" && c.RateLimit.Table == "" {
		return fmt.Errorf("ratelimit.table is required for the dynamodb rate limiter")
	}

	return nil
}

func (c *Config) IsMock() bool {
	return c.Primary.Mode == ModeMock
}
