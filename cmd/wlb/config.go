package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the runner configuration. Flags override file values.
type Config struct {
	Env         map[string]string `toml:"env"`
	Script      string            `toml:"script"`
	Layouts     string            `toml:"layouts"`
	LogLevel    string            `toml:"log_level"`
	Args        []string          `toml:"args"`
	PID         int               `toml:"pid"`
	Interactive bool              `toml:"interactive"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{LogLevel: "warn"}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Logger builds a console logger at the configured level, writing to stderr.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}

// Validate reports configurations that cannot run.
func (c Config) Validate() error {
	if c.Script == "" && !c.Interactive {
		return fmt.Errorf("no script given and interactive mode is off")
	}
	if c.PID < 0 {
		return fmt.Errorf("invalid pid %d", c.PID)
	}
	if c.Script != "" {
		if _, err := os.Stat(c.Script); err != nil {
			return fmt.Errorf("script: %w", err)
		}
	}
	return nil
}
