// Package config defines the service configuration and loads it from a
// YAML file with environment overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Configuration holds all configuration for the lending API.
type Configuration struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig holds the HTTP listener options.
type ServerConfig struct {
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig holds logging configuration options.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, console
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration, applying defaults for anything left unset.
func LoadConfiguration(configPath string) (*Configuration, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	viper.SetConfigType("yml")

	viper.SetDefault("server.listenAddress", ":8080")
	viper.SetDefault("database.path", "prestamos.db")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	if err := viper.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}
