package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Listener ListenerConfig `mapstructure:"listener"`
	Database DatabaseConfig `mapstructure:"database"`
	Web      WebConfig      `mapstructure:"web"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds server identification
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// ListenerConfig holds the DIS UDP receive settings
type ListenerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	MulticastGroup string `mapstructure:"multicast_group"` // Join this group instead of a unicast bind
	Interface      string `mapstructure:"interface"`       // Interface for multicast, empty for default
	ExerciseID     int    `mapstructure:"exercise_id"`     // 0 accepts every exercise
	ReadBufferSize int    `mapstructure:"read_buffer_size"`
	SiteACL        string `mapstructure:"site_acl"` // e.g. "DENY:7" or "PERMIT:1-10", empty allows all
}

// DatabaseConfig holds SQLite persistence settings
type DatabaseConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	RetentionDays int           `mapstructure:"retention_days"` // 0 keeps everything
	BusyTimeout   time.Duration `mapstructure:"busy_timeout"`
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Set defaults
	setDefaults()

	// Set config file
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/dis-nexus")
	}

	// Environment variables
	viper.SetEnvPrefix("DIS")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal to struct
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.name", "DIS-Nexus")
	viper.SetDefault("server.description", "DIS intercom monitor")

	// Listener defaults (3000 is the customary DIS port)
	viper.SetDefault("listener.enabled", true)
	viper.SetDefault("listener.host", "0.0.0.0")
	viper.SetDefault("listener.port", 3000)
	viper.SetDefault("listener.multicast_group", "")
	viper.SetDefault("listener.exercise_id", 0)
	viper.SetDefault("listener.read_buffer_size", 8192)
	viper.SetDefault("listener.site_acl", "")

	// Database defaults
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.path", "dis-nexus.db")
	viper.SetDefault("database.retention_days", 7)
	viper.SetDefault("database.busy_timeout", "5s")

	// Web defaults
	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
