package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "STORE_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"FANOUT_BACKEND", "NATS_URL", "NATS_SUBJECT_PREFIX", "ROOM_TTL",
	"JOIN_WINDOW", "LOG_LEVEL", "LOG_PRETTY", "DATABASE_URL", "DB_HOST",
	"DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Store.RoomTTL)
	assert.Equal(t, FanoutLocal, cfg.Fanout.Backend)
	assert.Equal(t, "pomowave", cfg.Fanout.NATS.SubjectPrefix)
	assert.Equal(t, 60*time.Second, cfg.Rooms.JoinWindow)
	assert.Equal(t, "pomowave:", cfg.Redis.KeyPrefix)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
port: "9000"
store:
  backend: redis
  room_ttl: 2h
redis:
  addr: cache:6379
fanout:
  backend: nats
  nats:
    url: nats://bus:4222
    reconnect_wait: 5s
rooms:
  join_window: 30s
log:
  level: debug
  pretty: false
`)
	t.Setenv("PORT", "7000")
	t.Setenv("JOIN_WINDOW", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Store.RoomTTL)
	assert.Equal(t, FanoutNATS, cfg.Fanout.Backend)
	assert.Equal(t, "nats://bus:4222", cfg.Fanout.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.Fanout.NATS.ReconnectWait)
	assert.Equal(t, 45*time.Second, cfg.Rooms.JoinWindow)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)

	redisCfg := cfg.RedisStoreConfig()
	assert.Equal(t, "cache:6379", redisCfg.Addr)
	assert.Equal(t, 2*time.Hour, redisCfg.TTL)
}

func TestLoad_DatabaseEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
store:
  backend: postgres
database:
  host: file-host
  port: 5433
  database: fromfile
`)
	t.Setenv("DB_HOST", "env-host")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "fromfile", cfg.Database.Database)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "unknown store", env: map[string]string{"STORE_BACKEND": "mongo"}},
		{name: "unknown fanout", env: map[string]string{"FANOUT_BACKEND": "kafka"}},
		{name: "bad ttl", env: map[string]string{"ROOM_TTL": "forever"}},
		{name: "zero join window", env: map[string]string{"JOIN_WINDOW": "0s"}},
		{name: "bad db port", env: map[string]string{"DB_PORT": "five"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "bad pretty flag", env: map[string]string{"LOG_PRETTY": "sometimes"}},
		{name: "malformed yaml", file: "store: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_NormalizesCase(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "Redis"
	cfg.Fanout.Backend = "NATS"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, FanoutNATS, cfg.Fanout.Backend)
}
