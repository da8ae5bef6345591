package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/multiformats/go-multiaddr"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration settings for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Database    DatabaseConfig `mapstructure:"database"`
	Announce    AnnounceConfig `mapstructure:"announce"`
	Keeper      KeeperConfig   `mapstructure:"keeper"`
	Security    SecurityConfig `mapstructure:"security"`
}

// DatabaseConfig holds instance archive settings
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Embedded        bool          `mapstructure:"embedded"`
	EmbeddedPort    uint32        `mapstructure:"embedded_port"`
	DataDir         string        `mapstructure:"data_dir"`
	SchemaDir       string        `mapstructure:"schema_dir"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AnnounceConfig holds pubsub announcement settings
type AnnounceConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Topic      string `mapstructure:"topic"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// KeeperConfig holds the conclude sweeper settings
type KeeperConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SecurityConfig holds ballot authentication settings
type SecurityConfig struct {
	RequireSignedBallots bool          `mapstructure:"require_signed_ballots"`
	KeyFile              string        `mapstructure:"key_file"`
	TokenExpiry          time.Duration `mapstructure:"token_expiry"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will rely on defaults and env vars
	}

	v.SetEnvPrefix("VOTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Database defaults
	v.SetDefault("database.embedded", false)
	v.SetDefault("database.embedded_port", 5433)
	v.SetDefault("database.data_dir", "./data/postgres")
	v.SetDefault("database.schema_dir", "./sql/schema")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Announce defaults
	v.SetDefault("announce.enabled", false)
	v.SetDefault("announce.topic", "voting_instances")
	v.SetDefault("announce.listen_addr", "/ip4/127.0.0.1/tcp/0")

	// Keeper defaults
	v.SetDefault("keeper.enabled", true)
	v.SetDefault("keeper.schedule", "0 * * * * *")

	// Security defaults
	v.SetDefault("security.require_signed_ballots", false)
	v.SetDefault("security.token_expiry", "24h")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	if err := c.validateAnnounce(); err != nil {
		return fmt.Errorf("announce config: %w", err)
	}
	if err := c.validateKeeper(); err != nil {
		return fmt.Errorf("keeper config: %w", err)
	}
	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security config: %w", err)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" && !c.Database.Embedded {
		return fmt.Errorf("either url or embedded must be set")
	}
	if c.Database.Embedded && (c.Database.EmbeddedPort == 0 || c.Database.EmbeddedPort > 65535) {
		return fmt.Errorf("invalid embedded port: %d", c.Database.EmbeddedPort)
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}
	if c.Database.MaxConnections < c.Database.MinConnections {
		return fmt.Errorf("max_connections (%d) cannot be less than min_connections (%d)",
			c.Database.MaxConnections, c.Database.MinConnections)
	}
	return nil
}

func (c *Config) validateAnnounce() error {
	if !c.Announce.Enabled {
		return nil
	}
	if c.Announce.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if _, err := multiaddr.NewMultiaddr(c.Announce.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen_addr %q: %w", c.Announce.ListenAddr, err)
	}
	return nil
}

func (c *Config) validateKeeper() error {
	if c.Keeper.Enabled && c.Keeper.Schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RequireSignedBallots && c.Security.KeyFile == "" {
		return fmt.Errorf("key_file required when require_signed_ballots is set")
	}
	if c.Security.KeyFile != "" && !filepath.IsAbs(c.Security.KeyFile) {
		c.Security.KeyFile = filepath.Clean(c.Security.KeyFile)
	}
	if c.Security.TokenExpiry <= 0 {
		return fmt.Errorf("token_expiry must be positive")
	}
	return nil
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
