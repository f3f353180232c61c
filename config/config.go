package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageType selects the credential store backend.
type StorageType string

const (
	StorageTypeMongoDB  StorageType = "mongodb"
	StorageTypePostgres StorageType = "postgres"
	StorageTypeMemory   StorageType = "memory"
)

// RateLimitBackend selects where abuse-guard counters live.
type RateLimitBackend string

const (
	RateLimitBackendRedis  RateLimitBackend = "redis"
	RateLimitBackendMemory RateLimitBackend = "memory"
)

// EnvPrefix is prepended to every environment variable (AUTHD_HTTP_ADDR, AUTHD_TOKEN_SECRET, ...).
const EnvPrefix = "AUTHD"

// Config holds all configuration for the auth server.
type Config struct {
	HTTPAddr       string      `mapstructure:"http_addr"`
	LogLevel       string      `mapstructure:"log_level"`
	LogPretty      bool        `mapstructure:"log_pretty"`
	StorageBackend StorageType `mapstructure:"storage_backend"`

	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For is honored. Empty means the TCP peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	Mongo     MongoConfig     `mapstructure:"mongo"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Token     TokenConfig     `mapstructure:"token"`
	Google    GoogleConfig    `mapstructure:"google"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Password  PasswordConfig  `mapstructure:"password"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// TokenConfig configures session token signing.
type TokenConfig struct {
	SigningMethod  string        `mapstructure:"signing_method"` // hs256 or ed25519
	Secret         string        `mapstructure:"secret"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	Leeway         time.Duration `mapstructure:"leeway"`
}

type GoogleConfig struct {
	ClientID  string `mapstructure:"client_id"`
	IssuerURL string `mapstructure:"issuer_url"`
}

// RateLimitConfig configures the abuse guard on the authentication endpoints.
type RateLimitConfig struct {
	Backend     RateLimitBackend `mapstructure:"backend"`
	MaxAttempts int              `mapstructure:"max_attempts"`
	Window      time.Duration    `mapstructure:"window"`
}

// TracingConfig enables the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type PasswordConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
	MinLength  int `mapstructure:"min_length"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", "0.0.0.0:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("storage_backend", string(StorageTypeMongoDB))

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "talent_auth")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("postgres.dsn", "postgres://localhost:5432/talent_auth?sslmode=disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "authd")

	v.SetDefault("token.signing_method", "hs256")
	v.SetDefault("token.secret", "")
	v.SetDefault("token.private_key_path", "")
	v.SetDefault("token.public_key_path", "")
	v.SetDefault("token.issuer", "talent-auth")
	v.SetDefault("token.audience", "talent-platform")
	v.SetDefault("token.access_ttl", "168h")
	v.SetDefault("token.refresh_ttl", "720h")
	v.SetDefault("token.leeway", "30s")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.issuer_url", "https://accounts.google.com")

	v.SetDefault("trusted_proxies", []string{})

	v.SetDefault("rate_limit.backend", string(RateLimitBackendMemory))
	v.SetDefault("rate_limit.max_attempts", 5)
	v.SetDefault("rate_limit.window", "15m")

	v.SetDefault("password.bcrypt_cost", 12)
	v.SetDefault("password.min_length", 8)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "talent-auth")
}

// LoadConfig reads configuration from file, environment variables and defaults.
// An empty configFile searches the usual locations for authd.yaml.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("authd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/talent-auth/")
		v.AddConfigPath("$HOME/.talent-auth")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.StorageBackend = StorageType(strings.ToLower(string(cfg.StorageBackend)))
	cfg.RateLimit.Backend = RateLimitBackend(strings.ToLower(string(cfg.RateLimit.Backend)))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageTypeMongoDB, StorageTypePostgres, StorageTypeMemory:
	default:
		return fmt.Errorf("unsupported storage_backend %q", c.StorageBackend)
	}
	switch c.RateLimit.Backend {
	case RateLimitBackendRedis, RateLimitBackendMemory:
	default:
		return fmt.Errorf("unsupported rate_limit.backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.MaxAttempts <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.max_attempts and rate_limit.window must be positive")
	}

	switch strings.ToLower(c.Token.SigningMethod) {
	case "hs256":
		if len(c.Token.Secret) < 32 {
			return errors.New("token.secret must be at least 32 bytes for hs256")
		}
	case "ed25519":
		if c.Token.PrivateKeyPath == "" || c.Token.PublicKeyPath == "" {
			return errors.New("token.private_key_path and token.public_key_path are required for ed25519")
		}
	default:
		return fmt.Errorf("unsupported token.signing_method %q", c.Token.SigningMethod)
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("token.refresh_ttl must exceed a positive token.access_ttl")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("token.issuer and token.audience are required")
	}
	return nil
}
