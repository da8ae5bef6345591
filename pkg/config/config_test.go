package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := []byte(`
environment: production
log_level: debug
database:
  url: postgres://localhost:5432/voting
  max_connections: 20
  min_connections: 5
announce:
  enabled: true
  topic: governance_instances
  listen_addr: /ip4/0.0.0.0/tcp/4001
keeper:
  enabled: true
  schedule: "30 * * * * *"
security:
  token_expiry: 12h
`)

	err := os.WriteFile(configPath, configContent, 0644)
	require.NoError(t, err)

	t.Run("LoadValidConfig", func(t *testing.T) {
		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "postgres://localhost:5432/voting", cfg.Database.URL)
		assert.Equal(t, 20, cfg.Database.MaxConnections)
		assert.Equal(t, "governance_instances", cfg.Announce.Topic)
		assert.Equal(t, "30 * * * * *", cfg.Keeper.Schedule)
		assert.Equal(t, 12*time.Hour, cfg.Security.TokenExpiry)
		assert.False(t, cfg.IsDevelopment())
	})

	t.Run("Defaults", func(t *testing.T) {
		minimalPath := filepath.Join(tmpDir, "minimal.yaml")
		require.NoError(t, os.WriteFile(minimalPath, []byte("database:\n  url: postgres://localhost/voting\n"), 0644))

		cfg, err := Load(minimalPath)
		require.NoError(t, err)

		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "voting_instances", cfg.Announce.Topic)
		assert.False(t, cfg.Announce.Enabled)
		assert.True(t, cfg.Keeper.Enabled)
		assert.Equal(t, 10, cfg.Database.MaxConnections)
		assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
		assert.True(t, cfg.IsDevelopment())
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{
				URL:            "postgres://localhost/voting",
				MaxConnections: 10,
				MinConnections: 2,
			},
			Announce: AnnounceConfig{
				Enabled:    true,
				Topic:      "voting_instances",
				ListenAddr: "/ip4/127.0.0.1/tcp/0",
			},
			Keeper:   KeeperConfig{Enabled: true, Schedule: "0 * * * * *"},
			Security: SecurityConfig{TokenExpiry: time.Hour},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("NoDatabase", func(t *testing.T) {
		cfg := valid()
		cfg.Database.URL = ""
		assert.Error(t, cfg.Validate())

		cfg.Database.Embedded = true
		cfg.Database.EmbeddedPort = 5433
		assert.NoError(t, cfg.Validate())
	})

	t.Run("BadConnectionBounds", func(t *testing.T) {
		cfg := valid()
		cfg.Database.MinConnections = 50
		assert.Error(t, cfg.Validate())
	})

	t.Run("BadListenAddr", func(t *testing.T) {
		cfg := valid()
		cfg.Announce.ListenAddr = "not-a-multiaddr"
		assert.Error(t, cfg.Validate())
	})

	t.Run("AnnounceDisabledSkipsAddrCheck", func(t *testing.T) {
		cfg := valid()
		cfg.Announce.Enabled = false
		cfg.Announce.ListenAddr = "not-a-multiaddr"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("KeeperWithoutSchedule", func(t *testing.T) {
		cfg := valid()
		cfg.Keeper.Schedule = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("SignedBallotsNeedKeyFile", func(t *testing.T) {
		cfg := valid()
		cfg.Security.RequireSignedBallots = true
		assert.Error(t, cfg.Validate())

		cfg.Security.KeyFile = "./keys/registry.key"
		assert.NoError(t, cfg.Validate())
	})
}

func TestGetLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	assert.Equal(t, "warn", cfg.GetLogLevel().String())

	cfg.LogLevel = "unknown"
	assert.Equal(t, "info", cfg.GetLogLevel().String())
}
