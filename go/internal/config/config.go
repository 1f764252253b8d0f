// Package config loads server settings from an optional YAML file with
// environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pomowave/pomowave/go/internal/dbconfig"
	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/pomowave/pomowave/go/internal/roomstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Fanout backends.
const (
	FanoutLocal = "local"
	FanoutNATS  = "nats"
)

type Config struct {
	Port     string          `yaml:"port"`
	Store    StoreConfig     `yaml:"store"`
	Redis    RedisConfig     `yaml:"redis"`
	Database dbconfig.Config `yaml:"database"`
	Fanout   FanoutConfig    `yaml:"fanout"`
	Rooms    RoomsConfig     `yaml:"rooms"`
	Log      LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	Backend string        `yaml:"backend"`
	RoomTTL time.Duration `yaml:"room_ttl"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type FanoutConfig struct {
	Backend string              `yaml:"backend"`
	NATS    realtime.NATSConfig `yaml:"nats"`
}

type RoomsConfig struct {
	JoinWindow       time.Duration `yaml:"join_window"`
	SchedulerWorkers int           `yaml:"scheduler_workers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a config for a single process with in-memory storage.
func Default() *Config {
	return &Config{
		Port: "8080",
		Store: StoreConfig{
			Backend: StoreMemory,
			RoomTTL: roomstore.DefaultTTL,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: roomstore.DefaultKeyPrefix,
		},
		Database: dbconfig.NewConfigFromEnv(),
		Fanout: FanoutConfig{
			Backend: FanoutLocal,
			NATS:    realtime.DefaultNATSConfig(),
		},
		Rooms: RoomsConfig{
			JoinWindow:       60 * time.Second,
			SchedulerWorkers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load builds the config from defaults, the YAML file at path (skipped
// when path is empty) and then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Fanout.Backend, "FANOUT_BACKEND")
	setString(&c.Fanout.NATS.URL, "NATS_URL")
	setString(&c.Fanout.NATS.SubjectPrefix, "NATS_SUBJECT_PREFIX")
	setString(&c.Log.Level, "LOG_LEVEL")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setDuration(&c.Store.RoomTTL, "ROOM_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.Rooms.JoinWindow, "JOIN_WINDOW"); err != nil {
		return err
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_PRETTY %q: %w", v, err)
		}
		c.Log.Pretty = pretty
	}
	return nil
}

// Validate rejects unknown backends and non-positive timeouts.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(c.Store.Backend)
	c.Fanout.Backend = strings.ToLower(c.Fanout.Backend)

	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Fanout.Backend {
	case FanoutLocal, FanoutNATS:
	default:
		return fmt.Errorf("unknown fanout backend %q", c.Fanout.Backend)
	}
	if c.Store.RoomTTL <= 0 {
		return fmt.Errorf("room ttl must be positive, got %s", c.Store.RoomTTL)
	}
	if c.Rooms.JoinWindow <= 0 {
		return fmt.Errorf("join window must be positive, got %s", c.Rooms.JoinWindow)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}

// RedisStoreConfig returns the settings for roomstore.NewRedis.
func (c *Config) RedisStoreConfig() roomstore.RedisConfig {
	return roomstore.RedisConfig{
		Addr:      c.Redis.Addr,
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		KeyPrefix: c.Redis.KeyPrefix,
		TTL:       c.Store.RoomTTL,
	}
}

// SetupLogging points the global zerolog logger at stderr, with the console
// writer when Pretty is set.
func SetupLogging(cfg LogConfig) {
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
