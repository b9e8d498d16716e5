// Package config loads the server configuration from YAML or TOML.
//
// Values may reference environment variables as ${VAR_NAME}. Durations use
// time.ParseDuration syntax:
//
//	server:
//	  name: "SQLite"
//	  transport: "stdio"        # stdio, sse, http
//	  addr: "127.0.0.1:8080"    # sse and http only
//
//	storage:
//	  data_dir: "${HOME}/.local/share/sqlite-mcp"
//	  default_database: "main.db"
//	  max_results: 1000
//	  busy_timeout: "5s"
//	  idle_timeout: "15m"
//
//	policy:
//	  allowed_statements: [SELECT, INSERT, UPDATE, DELETE, CREATE, DROP, ALTER, WITH, EXPLAIN]
//	  enabled_operations: []    # empty enables all
//	  constraints:
//	    execute_sql: '!args.query.contains("sqlite_master")'
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json, pretty
//
// A file ending in .toml is read as TOML with the same keys.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultName        = "SQLite"
	DefaultVersion     = "v0.1.0"
	DefaultTransport   = "stdio"
	DefaultAddr        = "127.0.0.1:8080"
	DefaultDataDir     = "./data"
	DefaultDatabase    = "main.db"
	DefaultMaxResults  = 1000
	DefaultBusyTimeout = 5 * time.Second
	DefaultIdleTimeout = 15 * time.Minute
)

var (
	transports = []string{"stdio", "sse", "http"}
	levels     = []string{"debug", "info", "warn", "error"}
	formats    = []string{"text", "json", "pretty"}
)

type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Policy  PolicyConfig  `yaml:"policy" toml:"policy"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type ServerConfig struct {
	Name      string `yaml:"name" toml:"name"`
	Version   string `yaml:"version" toml:"version"`
	Transport string `yaml:"transport" toml:"transport"`
	Addr      string `yaml:"addr" toml:"addr"`
}

type StorageConfig struct {
	DataDir         string `yaml:"data_dir" toml:"data_dir"`
	DefaultDatabase string `yaml:"default_database" toml:"default_database"`
	MaxResults      int    `yaml:"max_results" toml:"max_results"`

	BusyTimeout time.Duration `yaml:"-" toml:"-"`
	IdleTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values as written in the file
	BusyTimeoutRaw string `yaml:"busy_timeout" toml:"busy_timeout"`
	IdleTimeoutRaw string `yaml:"idle_timeout" toml:"idle_timeout"`
}

type PolicyConfig struct {
	AllowedStatements []string `yaml:"allowed_statements" toml:"allowed_statements"`
	// EnabledOperations limits the exposed tools. Empty exposes all of them.
	EnabledOperations []string `yaml:"enabled_operations" toml:"enabled_operations"`
	// Constraints maps an operation name to a CEL expression over args.
	Constraints map[string]string `yaml:"constraints" toml:"constraints"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      DefaultName,
			Version:   DefaultVersion,
			Transport: DefaultTransport,
			Addr:      DefaultAddr,
		},
		Storage: StorageConfig{
			DataDir:         DefaultDataDir,
			DefaultDatabase: DefaultDatabase,
			MaxResults:      DefaultMaxResults,
			BusyTimeout:     DefaultBusyTimeout,
			IdleTimeout:     DefaultIdleTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults. Files ending in .toml are
// parsed as TOML, everything else as YAML. Environment variables in the form
// ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err = toml.Decode(expanded, cfg)
	} else {
		err = yaml.Unmarshal([]byte(expanded), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVar = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or with an
// empty string when it is unset.
func expandEnvVars(s string) string {
	return envVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVar.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.Storage.BusyTimeoutRaw != "" {
		cfg.Storage.BusyTimeout, err = time.ParseDuration(cfg.Storage.BusyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing busy_timeout %q: %w", cfg.Storage.BusyTimeoutRaw, err)
		}
	}

	if cfg.Storage.IdleTimeoutRaw != "" {
		cfg.Storage.IdleTimeout, err = time.ParseDuration(cfg.Storage.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Storage.IdleTimeoutRaw, err)
		}
	}

	return nil
}

// Validate reports the first invalid setting it finds.
func (c *Config) Validate() error {
	if !slices.Contains(transports, c.Server.Transport) {
		return fmt.Errorf("server.transport must be one of %s, got %q", strings.Join(transports, ", "), c.Server.Transport)
	}
	if c.Server.Transport != "stdio" && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required for the %s transport", c.Server.Transport)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.MaxResults <= 0 {
		return fmt.Errorf("storage.max_results must be positive, got %d", c.Storage.MaxResults)
	}
	if c.Storage.BusyTimeout < 0 || c.Storage.IdleTimeout < 0 {
		return fmt.Errorf("storage timeouts must not be negative")
	}

	if !slices.Contains(levels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level must be one of %s, got %q", strings.Join(levels, ", "), c.Logging.Level)
	}
	if !slices.Contains(formats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format must be one of %s, got %q", strings.Join(formats, ", "), c.Logging.Format)
	}

	return nil
}
