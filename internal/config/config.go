// Package config loads the rakugaki TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"rakugaki/internal/logging"
)

type Config struct {
	Canvas  CanvasConfig  `toml:"canvas"`
	History HistoryConfig `toml:"history"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	Bridge  BridgeConfig  `toml:"bridge"`
	UI      UIConfig      `toml:"ui"`
}

type CanvasConfig struct {
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	ViewScale float64 `toml:"view_scale"`
}

type HistoryConfig struct {
	// Depth is the undo snapshot cap per layer.
	Depth int `toml:"depth"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// BridgeConfig controls the remote pointer input server.
type BridgeConfig struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Advertise bool   `toml:"advertise"`
}

type UIConfig struct {
	FrameRate int `toml:"frame_rate"`
	// AutosaveSeconds is how often the working project is kept for the
	// next session. 0 disables autosave.
	AutosaveSeconds int `toml:"autosave_seconds"`
}

// AutosaveInterval returns the autosave period, 0 when disabled.
func (u UIConfig) AutosaveInterval() time.Duration {
	return time.Duration(u.AutosaveSeconds) * time.Second
}

// Dir is the per-user rakugaki directory.
func Dir() string {
	if v := os.Getenv("RKGK_DATA_DIR"); v != "" {
		return v
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "rakugaki")
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

func DefaultConfig() *Config {
	return &Config{
		Canvas:  CanvasConfig{Width: 1280, Height: 800, ViewScale: 1},
		History: HistoryConfig{Depth: 32},
		Storage: StorageConfig{Path: filepath.Join(Dir(), "rakugaki.db")},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
		Bridge:  BridgeConfig{Enabled: false, Addr: ":7419", Advertise: true},
		UI:      UIConfig{FrameRate: 60, AutosaveSeconds: 30},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = Path()
	}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies RKGK_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("RKGK_CANVAS_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RKGK_CANVAS_WIDTH: %w", err)
		}
		c.Canvas.Width = n
	}
	if v := os.Getenv("RKGK_CANVAS_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RKGK_CANVAS_HEIGHT: %w", err)
		}
		c.Canvas.Height = n
	}
	if v := os.Getenv("RKGK_STORE"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("RKGK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RKGK_BRIDGE_ADDR"); v != "" {
		c.Bridge.Addr = v
		c.Bridge.Enabled = true
	}
	if v := os.Getenv("RKGK_AUTOSAVE_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RKGK_AUTOSAVE_SECONDS: %w", err)
		}
		c.UI.AutosaveSeconds = n
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas: size %dx%d must be positive", c.Canvas.Width, c.Canvas.Height))
	}
	if !(c.Canvas.ViewScale > 0) {
		errs = append(errs, fmt.Errorf("canvas: view_scale %v must be positive", c.Canvas.ViewScale))
	}
	if c.History.Depth < 1 {
		errs = append(errs, fmt.Errorf("history: depth %d must be at least 1", c.History.Depth))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage: path is required"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if c.Bridge.Enabled && c.Bridge.Addr == "" {
		errs = append(errs, errors.New("bridge: addr is required when enabled"))
	}
	if c.UI.FrameRate < 1 || c.UI.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("ui: frame_rate %d out of range", c.UI.FrameRate))
	}
	if c.UI.AutosaveSeconds < 0 {
		errs = append(errs, fmt.Errorf("ui: autosave_seconds %d must not be negative", c.UI.AutosaveSeconds))
	}
	return errors.Join(errs...)
}

// LogConfig converts the logging section. Call Validate first.
func (c *Config) LogConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level, _ = logging.ParseLevel(c.Logging.Level)
	lc.Format, _ = logging.ParseFormat(c.Logging.Format)
	lc.Output = c.Logging.Output
	return lc
}
