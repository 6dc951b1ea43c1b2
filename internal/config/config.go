package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZeroiJ/hub/internal/logger"
	"github.com/ZeroiJ/hub/internal/session"
)

const (
	fallbackShell = "/bin/bash"

	minReadChunk = 64
	maxReadChunk = 65536
)

// Config is the user's hub configuration.
type Config struct {
	Shell        string            `yaml:"shell"`
	Args         []string          `yaml:"args,omitempty"`
	Dir          string            `yaml:"dir,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	Term         string            `yaml:"term"`
	GracePeriod  Duration          `yaml:"grace_period"`
	WriteTimeout Duration          `yaml:"write_timeout"`
	ReadChunk    int               `yaml:"read_chunk"`
	LogLevel     string            `yaml:"log_level"`
	ActivityLog  ActivityLogConfig `yaml:"activity_log"`
}

type ActivityLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Duration is a time.Duration written as "2s" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the configuration used when no file exists. The shell
// defaults to $SHELL, then /bin/bash.
func Default() *Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = fallbackShell
	}
	return &Config{
		Shell:        shell,
		Term:         "linux",
		GracePeriod:  Duration(session.DefaultGracePeriod),
		WriteTimeout: Duration(session.DefaultWriteTimeout),
		ReadChunk:    session.DefaultReadChunk,
		LogLevel:     string(logger.LevelInfo),
	}
}

// Path resolves the config file location.
// Order: explicit flag value -> HUB_CONFIG env var -> ~/.config/hub/config.yaml.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv("HUB_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "hub", "config.yaml")
	}
	return filepath.Join(home, ".config", "hub", "config.yaml")
}

// Load reads the config from Path(flag).
func Load(flag string) (*Config, error) {
	return LoadFrom(Path(flag))
}

// LoadFrom reads the config from the given path on top of Default. If the
// file does not exist, the defaults are returned with no error. HUB_SHELL,
// when set, replaces the configured shell.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if shell := os.Getenv("HUB_SHELL"); shell != "" {
		cfg.Shell = shell
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no session could be launched with.
func (c *Config) Validate() error {
	if c.Shell == "" {
		return fmt.Errorf("shell: must not be empty")
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period: must not be negative, got %s", time.Duration(c.GracePeriod))
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout: must not be negative, got %s", time.Duration(c.WriteTimeout))
	}
	if c.ReadChunk < minReadChunk || c.ReadChunk > maxReadChunk {
		return fmt.Errorf("read_chunk: must be between %d and %d, got %d", minReadChunk, maxReadChunk, c.ReadChunk)
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	if c.ActivityLog.Enabled && c.ActivityLog.Path == "" {
		return fmt.Errorf("activity_log: path is required when enabled")
	}
	return nil
}

// LaunchConfig freezes the config into the value session.Launch takes. The
// returned value shares no maps or slices with c.
func (c *Config) LaunchConfig(cols, rows int) session.LaunchConfig {
	env := make(map[string]string, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	lc := session.LaunchConfig{
		Shell:        c.Shell,
		Args:         append([]string(nil), c.Args...),
		Dir:          c.Dir,
		Env:          env,
		Term:         c.Term,
		Cols:         cols,
		Rows:         rows,
		GracePeriod:  time.Duration(c.GracePeriod),
		WriteTimeout: time.Duration(c.WriteTimeout),
		ReadChunk:    c.ReadChunk,
	}
	if c.ActivityLog.Enabled {
		lc.ActivityLog = c.ActivityLog.Path
	}
	return lc
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
