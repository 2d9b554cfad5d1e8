// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig           `toml:"server"`
	Refresh RefreshConfig          `toml:"refresh"`
	Servers map[string]MediaServer `toml:"servers"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	DataDir  string `toml:"data_dir"`
}

// RefreshConfig controls the refresh coordinator. It is loaded once and
// treated as an immutable value; reconfiguration means loading a new Config.
type RefreshConfig struct {
	Enabled      bool     `toml:"enabled"`
	Delay        Seconds  `toml:"delay"`
	MediaServers []string `toml:"mediaservers"`
}

// MediaServer describes one configured media-server backend.
type MediaServer struct {
	Type  string `toml:"type"` // plex, emby, jellyfin
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// Seconds is a duration expressed in (possibly fractional) seconds.
// Accepts a TOML float, integer, or numeric string.
type Seconds float64

// UnmarshalTOML implements toml.Unmarshaler.
func (s *Seconds) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case float64:
		*s = Seconds(val)
	case int64:
		*s = Seconds(val)
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("parsing delay %q: %w", val, err)
		}
		*s = Seconds(f)
	default:
		return fmt.Errorf("delay must be a number or numeric string, got %T", v)
	}
	return nil
}

// Duration converts to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8475
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = "./data"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Refresh.Delay < 0 {
		return fmt.Errorf("refresh.delay must not be negative, got %v", float64(c.Refresh.Delay))
	}
	for name, srv := range c.Servers {
		switch srv.Type {
		case "plex", "emby", "jellyfin":
		default:
			return fmt.Errorf("servers.%s: unknown type %q (want plex, emby, or jellyfin)", name, srv.Type)
		}
		if srv.URL == "" {
			return fmt.Errorf("servers.%s: url is required", name)
		}
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
