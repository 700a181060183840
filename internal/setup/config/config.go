package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var ErrConfigFileNotFound = errors.New("could not find config file in any config path")

// Config represents the entire application configuration.
type Config struct {
	HTTP         HTTP       `koanf:"http"`
	PostgreSQL   PostgreSQL `koanf:"postgresql"`
	PostgreSQLRO PostgreSQL `koanf:"postgresql_ro"`
	Redis        Redis      `koanf:"redis"`
	Session      Session    `koanf:"session"`
	Tracing      Tracing    `koanf:"tracing"`
	Debug        Debug      `koanf:"debug"`
}

// HTTP contains listener configuration for both servers.
type HTTP struct {
	// Host and port for the public counter read endpoint.
	PublicHost string `koanf:"public_host"`
	PublicPort int    `koanf:"public_port"`
	// Host and port for the internal counter write endpoint.
	RESTHost string `koanf:"rest_host"`
	RESTPort int    `koanf:"rest_port"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"db_name"`
	// Maximum number of open connections in the pool.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum number of idle connections in the pool.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Maximum lifetime of a connection in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Maximum idle time of a connection in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains cache connection configuration.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Session contains session verification configuration.
type Session struct {
	// HMAC secret used to verify session tokens.
	Secret string `koanf:"secret"`
}

// Tracing contains telemetry export configuration.
type Tracing struct {
	// Uptrace DSN; tracing is disabled when empty.
	DSN string `koanf:"dsn"`
	// Instance identifier included in the reported service name.
	InstanceID string `koanf:"instance_id"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port"`
}

// LoadConfig loads the configuration from the first counters.toml found in
// the search paths. Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".counters",
		homeDir + "/.counters/config",
		"/etc/counters/config",
		"/app/config",
		"config",
		".",
	}

	return LoadConfigFrom(configPaths...)
}

// LoadConfigFrom loads the configuration from the first counters.toml found
// in the given directories.
func LoadConfigFrom(paths ...string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	for _, path := range paths {
		configFile := path + "/counters.toml"
		if _, err := os.Stat(configFile); err != nil {
			continue
		}

		if err := k.Load(file.Provider(configFile), toml.Parser()); err != nil {
			return nil, "", fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}

		usedConfigPath = path

		break
	}

	if usedConfigPath == "" {
		return nil, "", ErrConfigFileNotFound
	}

	// Defaults are applied before unmarshal so the file can override them
	cfg := Config{
		HTTP: HTTP{
			PublicHost: "0.0.0.0",
			PublicPort: 8080,
			RESTHost:   "0.0.0.0",
			RESTPort:   8081,
		},
		PostgreSQL: PostgreSQL{
			MaxOpenConns: 50,
			MaxIdleConns: 10,
			MaxLifetime:  10,
			MaxIdleTime:  5,
		},
		Debug: Debug{
			LogLevel: "info",
		},
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The read-only pool inherits the primary settings when not configured
	if cfg.PostgreSQLRO.Host == "" {
		cfg.PostgreSQLRO = cfg.PostgreSQL
	} else {
		if cfg.PostgreSQLRO.MaxOpenConns == 0 {
			cfg.PostgreSQLRO.MaxOpenConns = cfg.PostgreSQL.MaxOpenConns
		}

		if cfg.PostgreSQLRO.MaxIdleConns == 0 {
			cfg.PostgreSQLRO.MaxIdleConns = cfg.PostgreSQL.MaxIdleConns
		}

		if cfg.PostgreSQLRO.MaxLifetime == 0 {
			cfg.PostgreSQLRO.MaxLifetime = cfg.PostgreSQL.MaxLifetime
		}

		if cfg.PostgreSQLRO.MaxIdleTime == 0 {
			cfg.PostgreSQLRO.MaxIdleTime = cfg.PostgreSQL.MaxIdleTime
		}
	}

	return &cfg, usedConfigPath, nil
}
