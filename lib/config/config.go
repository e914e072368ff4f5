// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment is the deployment type.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "KEYGATE_CONFIG"

// Config is the keygate daemon configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Service   ServiceConfig   `yaml:"service"`
	AuthToken AuthTokenConfig `yaml:"auth_token"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace.
type Overrides struct {
	Service   *ServiceConfig   `yaml:"service,omitempty"`
	AuthToken *AuthTokenConfig `yaml:"auth_token,omitempty"`
	Metrics   *MetricsConfig   `yaml:"metrics,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty"`
}

// ServiceConfig configures the enforcement socket.
type ServiceConfig struct {
	// SocketPath is where the daemon listens. Must be absolute.
	SocketPath string `yaml:"socket_path"`

	// AllowedUIDs may call authorize-operation, authorize-rescope,
	// record-user-auth and key-info. Empty means only status works.
	AllowedUIDs []uint32 `yaml:"allowed_uids"`
}

// AuthTokenConfig enables verification of user-authentication tokens.
// Set both fields or neither. With neither, record-user-auth accepts a
// bare event from any allowed peer.
type AuthTokenConfig struct {
	// IdentityFile holds the age identity that opens SealedMasterFile.
	IdentityFile string `yaml:"identity_file"`

	// SealedMasterFile holds the age-sealed master secret the token
	// MAC key is derived from.
	SealedMasterFile string `yaml:"sealed_master_file"`
}

// Enabled reports whether token verification is configured.
func (a AuthTokenConfig) Enabled() bool {
	return a.IdentityFile != "" || a.SealedMasterFile != ""
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the TCP address for /metrics and /healthz. Empty
	// disables the HTTP server.
	Listen string `yaml:"listen"`

	// ReportInterval is how often the ledger gauge is refreshed.
	ReportInterval time.Duration `yaml:"report_interval"`
}

// LoggingConfig selects the daemon's slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text, json, or auto (text on a terminal, JSON
	// otherwise).
	Format string `yaml:"format"`
}

// SlogLevel converts Level. Call Validate first.
func (l LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Default returns the base values a config file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Service: ServiceConfig{
			SocketPath: "/run/keygate/keygate.sock",
		},
		Metrics: MetricsConfig{
			ReportInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads the file named by KEYGATE_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of keygate.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, applies the matching environment
// section and expands variables. It does not validate.
func LoadFile(path string) (*Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	config.applyEnvironmentOverrides()
	config.expandVariables()
	return config, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{Logging: &LoggingConfig{Format: "json"}}
		}
	}
	if overrides == nil {
		return
	}

	if service := overrides.Service; service != nil {
		override(&c.Service.SocketPath, service.SocketPath)
		if len(service.AllowedUIDs) > 0 {
			c.Service.AllowedUIDs = service.AllowedUIDs
		}
	}
	if authToken := overrides.AuthToken; authToken != nil {
		override(&c.AuthToken.IdentityFile, authToken.IdentityFile)
		override(&c.AuthToken.SealedMasterFile, authToken.SealedMasterFile)
	}
	if metrics := overrides.Metrics; metrics != nil {
		override(&c.Metrics.Listen, metrics.Listen)
		if metrics.ReportInterval != 0 {
			c.Metrics.ReportInterval = metrics.ReportInterval
		}
	}
	if logging := overrides.Logging; logging != nil {
		override(&c.Logging.Level, logging.Level)
		override(&c.Logging.Format, logging.Format)
	}
}

func override(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Service.SocketPath = expandVars(c.Service.SocketPath, vars)
	c.AuthToken.IdentityFile = expandVars(c.AuthToken.IdentityFile, vars)
	c.AuthToken.SealedMasterFile = expandVars(c.AuthToken.SealedMasterFile, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Service.SocketPath == "" {
		errs = append(errs, errors.New("service.socket_path is required"))
	} else if !filepath.IsAbs(c.Service.SocketPath) {
		errs = append(errs, fmt.Errorf("service.socket_path must be absolute, got %q", c.Service.SocketPath))
	}

	if c.AuthToken.Enabled() {
		if c.AuthToken.IdentityFile == "" {
			errs = append(errs, errors.New("auth_token.identity_file is required with auth_token.sealed_master_file"))
		}
		if c.AuthToken.SealedMasterFile == "" {
			errs = append(errs, errors.New("auth_token.sealed_master_file is required with auth_token.identity_file"))
		}
	}

	if c.Metrics.ReportInterval <= 0 {
		errs = append(errs, fmt.Errorf("metrics.report_interval must be positive, got %v", c.Metrics.ReportInterval))
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of %v, got %q", logLevels, c.Logging.Level))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of %v, got %q", logFormats, c.Logging.Format))
	}

	return errors.Join(errs...)
}
