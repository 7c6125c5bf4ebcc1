package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// APIConfig holds connection settings for the remote mail API.
type APIConfig struct {
	// BaseURL is the root URL of the mail API service.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// RefreshConfig holds auto-refresh behavior settings.
type RefreshConfig struct {
	// PollIntervalSec is how often (in seconds) the message list is
	// refreshed in the background.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// IdleTimeoutSec is how long the user must be inactive before
	// suppressed polling resumes.
	IdleTimeoutSec int `mapstructure:"idle_timeout_sec" yaml:"idle_timeout_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme        string `mapstructure:"theme" yaml:"theme"`
	ItemsPerPage int    `mapstructure:"items_per_page" yaml:"items_per_page"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Refresh RefreshConfig `mapstructure:"refresh" yaml:"refresh"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/pastel-inbox/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "pastel-inbox", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8025",
			TimeoutSec: 30,
		},
		Refresh: RefreshConfig{
			PollIntervalSec: 30,
			IdleTimeoutSec:  45,
		},
		Display: DisplayConfig{
			Theme:        "default",
			ItemsPerPage: DefaultItemsPerPage,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", "http://localhost:8025")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("refresh.poll_interval_sec", 30)
	v.SetDefault("refresh.idle_timeout_sec", 45)
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.items_per_page", DefaultItemsPerPage)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if !ValidItemsPerPage(cfg.Display.ItemsPerPage) {
		cfg.Display.ItemsPerPage = DefaultItemsPerPage
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("refresh", cfg.Refresh)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
