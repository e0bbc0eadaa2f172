// Package config loads husk configuration.
//
// Configuration comes from an optional file, YAML (.yaml, .yml) or CUE
// (.cue), overlaid with HUSK_* environment variables, then validated.
// Unknown YAML fields are rejected; CUE files must be concrete.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/husk/internal/board"
	"github.com/roach88/husk/internal/engine"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HUSK_"

// Config is the full husk configuration.
type Config struct {
	// DSN selects the checkpoint backend; see store.Open.
	DSN string `json:"dsn" yaml:"dsn" env:"DSN"`

	// Timeout bounds one reconciliation cycle.
	Timeout Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`

	// Lookback is the identity resolver's scan window.
	Lookback int `json:"lookback" yaml:"lookback" env:"LOOKBACK"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`

	Board  board.Config `json:"board" yaml:"board" envPrefix:"BOARD_"`
	Sticky StickyConfig `json:"sticky" yaml:"sticky" envPrefix:"STICKY_"`
}

// StickyConfig configures the sticky domain.
type StickyConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" env:"ENABLED"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DSN:      "husk.db",
		Timeout:  Duration(engine.DefaultTimeout),
		Lookback: engine.DefaultLookback,
		LogLevel: "info",
		Board:    board.DefaultConfig(),
		Sticky:   StickyConfig{Enabled: true},
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DSN) == "" {
		errs = append(errs, errors.New("dsn is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Lookback < 1 || c.Lookback > engine.DefaultLookback {
		errs = append(errs, fmt.Errorf("lookback must be between 1 and %d, got %d", engine.DefaultLookback, c.Lookback))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := c.Board.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats d like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}
