// Package config handles loading and managing application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Gateways GatewaysConfig `mapstructure:"gateways"`
	Core     CoreConfig     `mapstructure:"core"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"` // "debug", "release", or "test"
}

// DatabaseConfig holds the MySQL connection settings for the transaction
// record store.
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// GatewaysConfig holds the gateway endpoints. Merchant credentials are NOT
// configured here: they vary per transaction and travel with each request.
type GatewaysConfig struct {
	IfThenPayEntrypoint string `mapstructure:"ifthenpay_entrypoint"`
	SIBSEntrypoint      string `mapstructure:"sibs_entrypoint"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the gateway round-trip timeout.
func (g GatewaysConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// CoreConfig holds the ticketing core internal API configuration.
type CoreConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// Load reads configuration from the given YAML file. Environment variables
// prefixed with MBWAY_ override file values (MBWAY_CORE_API_KEY, ...).
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("mbway")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.gin_mode", "debug")
	viper.SetDefault("database.max_open_conns", 20)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("gateways.timeout_seconds", 10)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Core.BaseURL == "" {
		return fmt.Errorf("core.base_url is required")
	}
	if c.Database.Host == "" || c.Database.Database == "" {
		return fmt.Errorf("database.host and database.database are required")
	}
	return nil
}
