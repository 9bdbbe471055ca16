package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "database.json", c.Store.Path)
	assert.Equal(t, []string{"png", "jpg", "jpeg"}, c.Cycler.Extensions)
	assert.False(t, c.Caption.Enabled)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	c, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  path: /var/lib/loader/db.json
cycler:
  shared_cursor: true
  extensions: [png]
caption:
  enabled: true
  backend: llamacpp
  url: http://127.0.0.1:8080
`), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/loader/db.json", c.Store.Path)
	assert.True(t, c.Cycler.SharedCursor)
	assert.Equal(t, []string{"png"}, c.Cycler.Extensions)
	assert.Equal(t, "llamacpp", c.Caption.Backend)
	assert.Equal(t, "llava", c.Caption.Model, "unset keys keep their defaults")
	assert.NoError(t, c.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"store": {"path": "file.json"}}`), 0o644))
	t.Setenv("IMAGE_LOADER_STORE_PATH", "env.json")
	t.Setenv("IMAGE_LOADER_LOG_LEVEL", "debug")

	c, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "env.json", c.Store.Path)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("IMAGE_LOADER_STORE_PATH", "env.json")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--store", "flag.json", "--shared-cursor"}))

	c, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "flag.json", c.Store.Path)
	assert.True(t, c.Cycler.SharedCursor)
	assert.Equal(t, "input", c.Input.Dir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"), nil)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	c := Default()
	c.Input.Dir = "/data/in"
	c.Caption.Prompt = "Say what you see."
	require.NoError(t, c.SaveToFile(path))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"no extensions", func(c *Config) { c.Cycler.Extensions = nil }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad backend", func(c *Config) { c.Caption.Enabled = true; c.Caption.Backend = "cloud" }},
		{"no url", func(c *Config) { c.Caption.Enabled = true; c.Caption.URL = "" }},
		{"bad quality", func(c *Config) { c.Caption.Enabled = true; c.Caption.SendQuality = 101 }},
		{"negative size", func(c *Config) { c.Caption.Enabled = true; c.Caption.SendSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	c.Caption.Backend = "cloud"
	assert.NoError(t, c.Validate(), "caption settings are ignored while disabled")
}

func TestSlogLevel(t *testing.T) {
	level, err := LogConfig{Level: "warn"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
