package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	PushWebsocket = "websocket"
	PushRedis     = "redis"
	PushNone      = "none"
)

type Config struct {
	API struct {
		URL     string `yaml:"url" validate:"required,url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	User struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"user"`
	Push struct {
		Transport string `yaml:"transport" validate:"omitempty,oneof=websocket redis none"`
		URL       string `yaml:"url"`
	} `yaml:"push"`
	Sync struct {
		PollInterval string `yaml:"pollInterval"`
	} `yaml:"sync"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		File  string `yaml:"file"`
		Color *bool  `yaml:"color"`
	} `yaml:"log"`
}

// Load reads .env (if present), the YAML config at path and environment
// overrides, then validates the result. A missing config file is not an error
// when the environment supplies the required values.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}

	applyEnv(&cfg)
	if cfg.Push.Transport == "" {
		cfg.Push.Transport = PushNone
		if cfg.Push.URL != "" {
			cfg.Push.Transport = PushWebsocket
		}
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch cfg.Push.Transport {
	case PushWebsocket:
		if cfg.Push.URL == "" {
			return fmt.Errorf("invalid config: push.url is required for the websocket transport")
		}
	case PushRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("invalid config: redis.addr is required for the redis transport")
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.API.URL, "DUEL_API_URL")
	setString(&cfg.API.Token, "DUEL_API_TOKEN")
	setString(&cfg.User.ID, "DUEL_USER_ID")
	setString(&cfg.Push.Transport, "DUEL_PUSH_TRANSPORT")
	setString(&cfg.Push.URL, "DUEL_PUSH_URL")
	setString(&cfg.Redis.Addr, "DUEL_REDIS_ADDR")
	setString(&cfg.Redis.Password, "DUEL_REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "DUEL_POSTGRES_URL")
	setString(&cfg.Log.Level, "DUEL_LOG_LEVEL")
	if v := os.Getenv("DUEL_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
