package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/ZeroiJ/hub/internal/config"
	"github.com/ZeroiJ/hub/internal/logger"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
	overrides  []string
}

// loadConfig reads the config file and applies --set and --log-level on top.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	overrides := g.overrides
	if g.logLevel != "" {
		overrides = append(append([]string(nil), overrides...), "log_level="+g.logLevel)
	}
	if err := config.ApplyOverrides(cfg, overrides); err != nil {
		return nil, fmt.Errorf("apply overrides: %w", err)
	}
	return cfg, nil
}

// setupLogging points the global logger at --log-file, or at fallback when
// no file was given. The returned func closes the log file.
func (g *globalFlags) setupLogging(cfg *config.Config, fallback io.Writer) (func(), error) {
	level, _ := logger.ParseLevel(cfg.LogLevel)
	level = logger.LevelFromEnv(level)

	if g.logFile == "" {
		logger.Configure(level, fallback, fallback == os.Stderr)
		return func() {}, nil
	}
	f, err := os.OpenFile(g.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.Configure(level, f, false)
	return func() { f.Close() }, nil
}
