package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gatehouse.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	// Domain is the gateway's root domain. The login and home pages are served
	// on it, and session cookies are scoped to it.
	Domain string `yaml:"domain"`

	// Production enables production posture: HTTPS enforcement and secure
	// session cookies.
	Production bool `yaml:"production"`

	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Users   UsersConfig   `yaml:"users"`
	Apps    []AppConfig   `yaml:"apps"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	HTTPS    bool                `yaml:"https"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// SessionConfig contains session cookie settings.
type SessionConfig struct {
	// Secret signs session tokens. When empty, a random secret is generated
	// at startup and existing sessions do not survive a restart.
	Secret string `yaml:"secret"`

	// MaxAgeDays is the session lifetime in days.
	MaxAgeDays int `yaml:"max_age_days"`
}

// UsersConfig locates the external credential source.
type UsersConfig struct {
	// Path is the filesystem path to the users JSON file.
	Path string `yaml:"path"`

	// Watch reloads the registry when the users file changes on disk.
	Watch bool `yaml:"watch"`
}

// AppConfig describes one fronted application.
type AppConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Host        string   `yaml:"host"`
	Path        string   `yaml:"path"`
	Public      []string `yaml:"public"`

	// Kind selects the built-in handler: "static" or "proxy".
	Kind string `yaml:"kind"`

	// Root is the directory served when Kind is "static".
	Root string `yaml:"root"`

	// Target is the upstream URL when Kind is "proxy".
	Target string `yaml:"target"`
}

// AuditConfig contains login audit trail settings.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GATEHOUSE_SECTION_KEY
// For example: GATEHOUSE_SESSION_SECRET, GATEHOUSE_USERS_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Session: SessionConfig{
			MaxAgeDays: 30,
		},
		Users: UsersConfig{
			Watch: true,
		},
		Audit: AuditConfig{
			Path:        "./data/gatehouse.db",
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GATEHOUSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATEHOUSE_DOMAIN"); v != "" {
		cfg.Domain = v
	}
	if v := os.Getenv("GATEHOUSE_PRODUCTION"); v != "" {
		cfg.Production = v == "1" || strings.EqualFold(v, "true")
	}

	// Server
	if v := os.Getenv("GATEHOUSE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	// Session secret (IMPORTANT: always set in production so sessions
	// survive restarts)
	if v := os.Getenv("GATEHOUSE_SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}

	// Users file
	if v := os.Getenv("GATEHOUSE_USERS_PATH"); v != "" {
		cfg.Users.Path = v
	}

	// Audit
	if v := os.Getenv("GATEHOUSE_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Domain == "" {
		errs = append(errs, "domain is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Users.Path == "" {
		errs = append(errs, "users.path is required")
	}

	if c.Session.MaxAgeDays < 1 {
		errs = append(errs, "session.max_age_days must be at least 1")
	}

	seenIDs := make(map[string]bool, len(c.Apps))
	seenHosts := make(map[string]bool, len(c.Apps))
	for i := range c.Apps {
		app := &c.Apps[i]
		prefix := fmt.Sprintf("apps[%d]", i)

		if app.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else if seenIDs[app.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is not unique", prefix, app.ID))
		}
		seenIDs[app.ID] = true

		if app.Host == "" {
			errs = append(errs, prefix+".host is required")
		} else if seenHosts[app.Host] {
			errs = append(errs, fmt.Sprintf("%s.host %q is not unique", prefix, app.Host))
		}
		seenHosts[app.Host] = true

		switch app.Kind {
		case "static":
			if app.Root == "" {
				errs = append(errs, prefix+".root is required for static apps")
			}
		case "proxy":
			if app.Target == "" {
				errs = append(errs, prefix+".target is required for proxy apps")
			} else if _, err := url.Parse(app.Target); err != nil {
				errs = append(errs, fmt.Sprintf("%s.target is not a valid URL: %v", prefix, err))
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.kind must be \"static\" or \"proxy\", got %q", prefix, app.Kind))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// SessionMaxAge returns the configured session lifetime as a Duration.
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.MaxAgeDays) * 24 * time.Hour
}

// SecureCookies reports whether session cookies should carry the Secure flag.
// Matches the deployment posture: production behind HTTPS.
func (c *Config) SecureCookies() bool {
	return c.Production && c.Server.HTTPS
}
