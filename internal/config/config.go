package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MrEthical07/sessiongate"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// Server is the complete server configuration.
type Server struct {
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	Redis   RedisConfig   `yaml:"redis" toml:"redis"`
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" toml:"addr"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins" toml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"-" toml:"-"`
	WriteTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	ReadTimeoutRaw     string `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeoutRaw    string `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// RedisConfig selects the session store. An empty Addr starts an embedded
// in-memory Redis, which is only suitable for development.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

// StoreConfig selects the credential store.
type StoreConfig struct {
	Driver        string `yaml:"driver" toml:"driver"`
	Path          string `yaml:"path" toml:"path"`
	MongoURI      string `yaml:"mongo_uri" toml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database" toml:"mongo_database"`
}

// AuthConfig holds token and session settings.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret" toml:"jwt_secret"`
	KeyID          string        `yaml:"key_id" toml:"key_id"`
	Issuer         string        `yaml:"issuer" toml:"issuer"`
	MaxConnections int           `yaml:"max_connections" toml:"max_connections"`
	AutoLogin      *bool         `yaml:"auto_login" toml:"auto_login"`
	TokenTTL       time.Duration `yaml:"-" toml:"-"`
	SessionTTL     time.Duration `yaml:"-" toml:"-"`

	// PreviousSecrets maps the key_id of retired secrets to the secret, so
	// tokens issued before a rotation stay valid until they expire.
	PreviousSecrets map[string]string `yaml:"previous_secrets" toml:"previous_secrets"`

	TokenTTLRaw   string `yaml:"token_ttl" toml:"token_ttl"`
	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Default returns a configuration that runs locally with an embedded Redis
// and a SQLite file in the working directory. Auth.JWTSecret is left empty.
func Default() *Server {
	return &Server{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Redis: RedisConfig{Prefix: "sg"},
		Store: StoreConfig{Driver: DriverSQLite, Path: "sessiongate.db", MongoDatabase: "sessiongate"},
		Auth: AuthConfig{
			MaxConnections: 20,
			TokenTTL:       7 * 24 * time.Hour,
			SessionTTL:     30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads path on top of Default. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func Load(path string) (*Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	expanded := expandEnvVars(string(data))

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} with the environment value, or the empty
// string when unset.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Server) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"http.read_timeout", c.HTTP.ReadTimeoutRaw, &c.HTTP.ReadTimeout},
		{"http.write_timeout", c.HTTP.WriteTimeoutRaw, &c.HTTP.WriteTimeout},
		{"http.shutdown_timeout", c.HTTP.ShutdownTimeoutRaw, &c.HTTP.ShutdownTimeout},
		{"auth.token_ttl", c.Auth.TokenTTLRaw, &c.Auth.TokenTTL},
		{"auth.session_ttl", c.Auth.SessionTTLRaw, &c.Auth.SessionTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks the fields the server cannot start without.
func (c *Server) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes")
	}
	if len(c.Auth.PreviousSecrets) > 0 && strings.TrimSpace(c.Auth.KeyID) == "" {
		return errors.New("auth.key_id is required when auth.previous_secrets is set")
	}
	for kid, secret := range c.Auth.PreviousSecrets {
		if strings.TrimSpace(kid) == "" {
			return errors.New("auth.previous_secrets keys must not be empty")
		}
		if kid == c.Auth.KeyID {
			return fmt.Errorf("auth.previous_secrets[%s] reuses the current key_id", kid)
		}
		if len(secret) < 32 {
			return fmt.Errorf("auth.previous_secrets[%s] must be at least 32 bytes", kid)
		}
	}
	if c.Auth.MaxConnections < 1 {
		return errors.New("auth.max_connections must be >= 1")
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.SessionTTL <= 0 {
		return errors.New("auth.token_ttl and auth.session_ttl must be > 0")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for sqlite")
		}
	case DriverMongoDB:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return errors.New("store.mongo_uri and store.mongo_database are required for mongodb")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}

// EngineConfig maps the server settings onto an engine configuration.
func (c *Server) EngineConfig() sessiongate.Config {
	cfg := sessiongate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.Auth.JWTSecret)
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.KeyID = c.Auth.KeyID
	if len(c.Auth.PreviousSecrets) > 0 {
		cfg.JWT.VerifyKeys = make(map[string][]byte, len(c.Auth.PreviousSecrets))
		for kid, secret := range c.Auth.PreviousSecrets {
			cfg.JWT.VerifyKeys[kid] = []byte(secret)
		}
	}
	cfg.JWT.TTL = c.Auth.TokenTTL
	cfg.Session.Lifetime = c.Auth.SessionTTL
	cfg.Session.DefaultMaxConnections = c.Auth.MaxConnections
	if c.Redis.Prefix != "" {
		cfg.Session.RedisPrefix = c.Redis.Prefix
	}
	if c.Auth.AutoLogin != nil {
		cfg.Account.AutoLogin = *c.Auth.AutoLogin
	}
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	return cfg
}

// Logger builds a logrus logger from the logging section.
func (c *Server) Logger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
