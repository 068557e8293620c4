package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rakugaki/internal/logging"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1280, cfg.Canvas.Width)
	assert.Equal(t, 32, cfg.History.Depth)
	assert.False(t, cfg.Bridge.Enabled)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Canvas, cfg.Canvas)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[canvas]
width = 640

[logging]
level = "debug"
format = "json"

[bridge]
enabled = true
addr = "127.0.0.1:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 640, cfg.Canvas.Width)
	assert.Equal(t, 800, cfg.Canvas.Height)
	assert.True(t, cfg.Bridge.Enabled)
	assert.Equal(t, "127.0.0.1:9000", cfg.Bridge.Addr)

	lc := cfg.LogConfig()
	assert.Equal(t, slog.LevelDebug, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[canvas\nwidth ="), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RKGK_CANVAS_WIDTH", "300")
	t.Setenv("RKGK_CANVAS_HEIGHT", "200")
	t.Setenv("RKGK_STORE", "/tmp/x.db")
	t.Setenv("RKGK_LOG_LEVEL", "warn")
	t.Setenv("RKGK_BRIDGE_ADDR", ":8000")
	t.Setenv("RKGK_AUTOSAVE_SECONDS", "0")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Canvas.Width)
	assert.Equal(t, 200, cfg.Canvas.Height)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Bridge.Enabled)
	assert.Equal(t, ":8000", cfg.Bridge.Addr)
	assert.Zero(t, cfg.UI.AutosaveInterval())
	assert.NoError(t, cfg.Validate())
}

func TestAutosaveInterval(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.UI.AutosaveInterval())

	t.Setenv("RKGK_AUTOSAVE_SECONDS", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	t.Setenv("RKGK_CANVAS_WIDTH", "wide")
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"zero width", func(c *Config) { c.Canvas.Width = 0 }},
		{"negative scale", func(c *Config) { c.Canvas.ViewScale = -2 }},
		{"no history", func(c *Config) { c.History.Depth = 0 }},
		{"no store", func(c *Config) { c.Storage.Path = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bridge without addr", func(c *Config) { c.Bridge.Enabled = true; c.Bridge.Addr = "" }},
		{"frame rate", func(c *Config) { c.UI.FrameRate = 0 }},
		{"negative autosave", func(c *Config) { c.UI.AutosaveSeconds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDirOverride(t *testing.T) {
	t.Setenv("RKGK_DATA_DIR", "/srv/rkgk")
	assert.Equal(t, filepath.Join("/srv/rkgk", "config.toml"), Path())
}
