package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"paynow-client/internal/infra/paynow"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// APIConfig guards the merchant API and the result webhook. An empty
// JWTSecret leaves /api/v1 unmounted.
type APIConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	WebhookRateLimit  int           `yaml:"webhook_rate_limit"` // requests per window per remote IP
	WebhookRateWindow time.Duration `yaml:"webhook_rate_window"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// PaynowConfig holds merchant credentials. IntegrationKey is decoded straight
// into its redacting type.
type PaynowConfig struct {
	IntegrationID  string                `yaml:"integration_id"`
	IntegrationKey paynow.IntegrationKey `yaml:"integration_key"`
	BaseURL        string                `yaml:"base_url"`
	ReturnURL      string                `yaml:"return_url"`
	ResultURL      string                `yaml:"result_url"`
	Timeout        time.Duration         `yaml:"timeout"`
}

// SecurityConfig.EncryptionKey, when set, must be 16, 24 or 32 bytes and
// seals customer contact details at rest.
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	Batch      int           `yaml:"batch"`
	Workers    int           `yaml:"workers"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Paynow     PaynowConfig     `yaml:"paynow"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Security   SecurityConfig   `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

const DefaultPaynowBaseURL = "https://www.paynow.co.zw/interface/"

// LoadConfig reads the YAML file at path, applies defaults and validates the
// fields the service cannot start without.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse is LoadConfig without the file read.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 15*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)
	if cfg.API.WebhookRateLimit <= 0 {
		cfg.API.WebhookRateLimit = 60
	}
	cfg.API.WebhookRateWindow = orDefault(cfg.API.WebhookRateWindow, time.Minute)
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, time.Hour)
	cfg.Redis.LockTTL = orDefault(cfg.Redis.LockTTL, 30*time.Second)
	if cfg.Paynow.BaseURL == "" {
		cfg.Paynow.BaseURL = DefaultPaynowBaseURL
	}
	cfg.Paynow.Timeout = orDefault(cfg.Paynow.Timeout, 30*time.Second)
	cfg.Reconciler.Interval = orDefault(cfg.Reconciler.Interval, time.Minute)
	cfg.Reconciler.StaleAfter = orDefault(cfg.Reconciler.StaleAfter, 2*time.Minute)
	if cfg.Reconciler.Batch <= 0 {
		cfg.Reconciler.Batch = 50
	}
	if cfg.Reconciler.Workers <= 0 {
		cfg.Reconciler.Workers = 4
	}
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Paynow.IntegrationID == "" {
		return errors.New("paynow.integration_id is required")
	}
	if _, err := strconv.ParseUint(cfg.Paynow.IntegrationID, 10, 64); err != nil {
		return errors.New("paynow.integration_id must be numeric")
	}
	if cfg.Paynow.IntegrationKey.IsZero() {
		return errors.New("paynow.integration_key is required")
	}
	if cfg.Paynow.ResultURL == "" {
		return errors.New("paynow.result_url is required")
	}
	if n := len(cfg.Security.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return errors.New("security.encryption_key must be 16, 24 or 32 bytes")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
