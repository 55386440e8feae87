package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the API server configuration.
type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	TokenTTL            time.Duration `env:"TOKEN_TTL,             default=24h"`
	AnonymousChatQuota  int           `env:"ANONYMOUS_CHAT_QUOTA,  default=2"`
	AnonymousChatWindow time.Duration `env:"ANONYMOUS_CHAT_WINDOW, default=720h"`
	AuthRateLimitRPM    int           `env:"AUTH_RATE_LIMIT_RPM,   default=30"`
	AuditWorkers        int           `env:"AUDIT_WORKERS,         default=4"`
	StoreDriver         string        `env:"STORE_DRIVER,          default=mongo"`

	Mongo  MongoConfig
	Redis  RedisConfig
	SQLite SQLiteConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=companion"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH, default=companion.db"`
}

// Load reads configuration from the environment, after merging in a .env
// file from the working directory when one exists.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l. Tests pass a map lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverSQLite, c.StoreDriver)
	}
	if c.AnonymousChatQuota < 0 {
		return fmt.Errorf("ANONYMOUS_CHAT_QUOTA must not be negative")
	}
	return nil
}
