package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. IMAGE_LOADER_STORE_PATH.
const EnvPrefix = "IMAGE_LOADER"

// Config holds the application configuration
type Config struct {
	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Input   InputConfig   `json:"input" mapstructure:"input"`
	Cycler  CyclerConfig  `json:"cycler" mapstructure:"cycler"`
	Caption CaptionConfig `json:"caption" mapstructure:"caption"`
	Log     LogConfig     `json:"log" mapstructure:"log"`
}

// StoreConfig locates the cursor store
type StoreConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// InputConfig holds the roots used to resolve image names
type InputConfig struct {
	Dir       string `json:"dir" mapstructure:"dir"`
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`
	TempDir   string `json:"temp_dir" mapstructure:"temp_dir"`
}

// CyclerConfig holds configuration for directory cycling
type CyclerConfig struct {
	Extensions   []string `json:"extensions" mapstructure:"extensions"`
	SharedCursor bool     `json:"shared_cursor" mapstructure:"shared_cursor"`
}

// CaptionConfig holds configuration for captioning images without a
// description
type CaptionConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Backend     string `json:"backend" mapstructure:"backend"`
	URL         string `json:"url" mapstructure:"url"`
	Model       string `json:"model" mapstructure:"model"`
	SendSize    int    `json:"send_size" mapstructure:"send_size"`
	SendQuality int    `json:"send_quality" mapstructure:"send_quality"`
	Prompt      string `json:"prompt" mapstructure:"prompt"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "database.json",
		},
		Input: InputConfig{
			Dir:       "input",
			OutputDir: "output",
			TempDir:   "temp",
		},
		Cycler: CyclerConfig{
			Extensions:   []string{"png", "jpg", "jpeg"},
			SharedCursor: false,
		},
		Caption: CaptionConfig{
			Enabled:     false,
			Backend:     "ollama",
			URL:         "http://localhost:11434",
			Model:       "llava",
			SendSize:    768,
			SendQuality: 85,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"store":           "store.path",
	"input-dir":       "input.dir",
	"output-dir":      "input.output_dir",
	"temp-dir":        "input.temp_dir",
	"shared-cursor":   "cycler.shared_cursor",
	"caption":         "caption.enabled",
	"caption-backend": "caption.backend",
	"caption-url":     "caption.url",
	"caption-model":   "caption.model",
	"log-level":       "log.level",
}

// RegisterFlags adds the configuration overrides to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("store", d.Store.Path, "cursor store file")
	fs.String("input-dir", d.Input.Dir, "directory for plain and [input] names")
	fs.String("output-dir", d.Input.OutputDir, "directory for [output] names")
	fs.String("temp-dir", d.Input.TempDir, "directory for [temp] names")
	fs.Bool("shared-cursor", d.Cycler.SharedCursor, "use one cursor for every directory")
	fs.Bool("caption", d.Caption.Enabled, "caption images that have no description")
	fs.String("caption-backend", d.Caption.Backend, "caption backend: ollama or llamacpp")
	fs.String("caption-url", d.Caption.URL, "caption server URL")
	fs.String("caption-model", d.Caption.Model, "caption model name")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
}

// NewViper returns a viper instance carrying the defaults and environment
// bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("input.dir", d.Input.Dir)
	v.SetDefault("input.output_dir", d.Input.OutputDir)
	v.SetDefault("input.temp_dir", d.Input.TempDir)
	v.SetDefault("cycler.extensions", d.Cycler.Extensions)
	v.SetDefault("cycler.shared_cursor", d.Cycler.SharedCursor)
	v.SetDefault("caption.enabled", d.Caption.Enabled)
	v.SetDefault("caption.backend", d.Caption.Backend)
	v.SetDefault("caption.url", d.Caption.URL)
	v.SetDefault("caption.model", d.Caption.Model)
	v.SetDefault("caption.send_size", d.Caption.SendSize)
	v.SetDefault("caption.send_quality", d.Caption.SendQuality)
	v.SetDefault("caption.prompt", d.Caption.Prompt)
	v.SetDefault("log.level", d.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the configuration from defaults, the optional file at path,
// the environment and the flags in fs, later sources winning. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := NewViper()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Parse(v)
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (*Config, error) {
	return Load(filename, nil)
}

// Parse decodes the settings held by v
func Parse(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &c, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path cannot be empty")
	}

	if len(c.Cycler.Extensions) == 0 {
		return fmt.Errorf("cycler.extensions cannot be empty")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	if !c.Caption.Enabled {
		return nil
	}

	switch c.Caption.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("caption.backend must be ollama or llamacpp, got %q", c.Caption.Backend)
	}

	if c.Caption.URL == "" {
		return fmt.Errorf("caption.url cannot be empty")
	}

	if c.Caption.SendQuality < 1 || c.Caption.SendQuality > 100 {
		return fmt.Errorf("caption.send_quality must be between 1 and 100")
	}

	if c.Caption.SendSize < 0 {
		return fmt.Errorf("caption.send_size must not be negative")
	}

	return nil
}

// SlogLevel parses the configured level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-loader", "config.json")
}
