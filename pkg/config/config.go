// Package config loads manimagic.yaml and applies environment overrides.
//
// Precedence, lowest first: built-in defaults, the config file, MANIMAGIC_*
// environment variables, then command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manimagic/manimagic/pkg/governance"
	"github.com/manimagic/manimagic/pkg/render"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "manimagic.yaml"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Render    render.Config     `yaml:"render"`
	Policy    governance.Policy `yaml:"policy"`
	Community CommunityConfig   `yaml:"community"`
	Rules     string            `yaml:"rules,omitempty"` // rule table override; "" is the embedded table
	Log       LogConfig         `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	BlockOnSyntaxError bool   `yaml:"block_on_syntax_error"`
	MaxBodyBytes       int64  `yaml:"max_body_bytes"`
}

// CommunityConfig configures the project store.
type CommunityConfig struct {
	Enabled bool   `yaml:"enabled"`
	DB      string `yaml:"db,omitempty"` // "" resolves via community.DefaultDBPath
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json; "" lets the command choose
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 32 << 20,
		},
		Render:    render.DefaultConfig(),
		Policy:    *governance.DefaultPolicy(),
		Community: CommunityConfig{Enabled: true},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads the config file at path over the defaults. An empty path
// tries DefaultFile and silently keeps the defaults if it does not exist.
// Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode strictly decodes YAML into cfg. Unknown fields are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("structural decode: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from MANIMAGIC_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("MANIMAGIC_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("MANIMAGIC_DB"); v != "" {
		c.Community.DB = v
	}
	if v := getenv("MANIMAGIC_PYTHON"); v != "" {
		c.Render.Python = v
	}
	if v := getenv("MANIMAGIC_RULES"); v != "" {
		c.Rules = v
	}
	if v := getenv("MANIMAGIC_RENDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MANIMAGIC_RENDER_TIMEOUT: %w", err)
		}
		c.Render.Timeout = d
	}
	if v := getenv("MANIMAGIC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Render.Timeout < 0 {
		errs = append(errs, fmt.Errorf("render.timeout must be positive, got %s", c.Render.Timeout))
	}
	if c.Render.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("render.max_concurrent must be positive, got %d", c.Render.MaxConcurrent))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := governance.NewEngine(&c.Policy); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}
	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
