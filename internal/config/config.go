// Package config loads server settings from a .env file, an optional
// marketplace.yml and the environment, in increasing order of precedence.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Addr string `mapstructure:"ADDR"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	SessionSecret  string        `mapstructure:"SESSION_SECRET"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`
	SessionBackend string        `mapstructure:"SESSION_BACKEND"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	CookieSecure   bool          `mapstructure:"COOKIE_SECURE"`

	UploadDir   string `mapstructure:"UPLOAD_DIR"`
	MaxUploadMB int    `mapstructure:"MAX_UPLOAD_MB"`

	LogLevel string `mapstructure:"LOG_LEVEL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`

	ESURL      string `mapstructure:"ES_URL"`
	ESUser     string `mapstructure:"ES_USER"`
	ESPassword string `mapstructure:"ES_PASSWORD"`
	ESIndex    string `mapstructure:"ES_INDEX"`

	// SecretGenerated is set when no SESSION_SECRET was configured and a
	// random one was drawn for this process.
	SecretGenerated bool `mapstructure:"-"`
}

var defaults = map[string]any{
	"ADDR":            ":8181",
	"DB_DRIVER":       "sqlite",
	"DATABASE_URL":    "marketplace.db",
	"SESSION_SECRET":  "",
	"SESSION_TTL":     "24h",
	"SESSION_BACKEND": "db",
	"REDIS_URL":       "",
	"COOKIE_SECURE":   true,
	"UPLOAD_DIR":      "static/images",
	"MAX_UPLOAD_MB":   10,
	"LOG_LEVEL":       "info",
	"KAFKA_BROKERS":   "",
	"ES_URL":          "",
	"ES_USER":         "",
	"ES_PASSWORD":     "",
	"ES_INDEX":        "products",
}

// Load reads envFile (missing is fine) and the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("marketplace")
	v.SetConfigType("yml")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read marketplace.yml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
		cfg.SecretGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.SessionBackend {
	case "db":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be db or redis, got %q", c.SessionBackend)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func (c *Config) Brokers() []string {
	return CSV(c.KafkaBrokers)
}

// BodyLimit is the echo BodyLimit value for MaxUploadMB.
func (c *Config) BodyLimit() string {
	return fmt.Sprintf("%dM", c.MaxUploadMB)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
