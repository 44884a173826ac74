// Package config loads server configuration from an optional YAML file with
// MUSE_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Models    ModelsConfig    `mapstructure:"models"`
	Images    ImagesConfig    `mapstructure:"images"`
}

// ServerConfig controls the HTTP listener and static assets.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	WebDir string `mapstructure:"web_dir"`
}

// StorageConfig selects the sqlite database file.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ProvidersConfig holds API credentials for the language-model providers.
// Missing keys disable that provider's models, not the whole server.
type ProvidersConfig struct {
	GoogleAPIKey string `mapstructure:"google_api_key"`
	GroqAPIKey   string `mapstructure:"groq_api_key"`
}

// ModelsConfig controls model selection.
type ModelsConfig struct {
	Default string `mapstructure:"default"`
}

// ImagesConfig controls image generation.
type ImagesConfig struct {
	Model string `mapstructure:"model"`
}

// Load reads configuration from path (optional; empty means defaults only)
// with environment variable overrides (prefix MUSE_, e.g.
// MUSE_PROVIDERS_GOOGLE_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.listen", ":8100")
	v.SetDefault("server.web_dir", "web")
	v.SetDefault("storage.path", "muse.db")
	v.SetDefault("models.default", "gemini-1.5-pro")
	// Empty defaults so env-only overrides bind through Unmarshal.
	v.SetDefault("providers.google_api_key", "")
	v.SetDefault("providers.groq_api_key", "")
	v.SetDefault("images.model", "imagen-3.0-generate-002")

	v.SetEnvPrefix("MUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Models.Default == "" {
		return fmt.Errorf("models.default must not be empty")
	}
	if c.Images.Model == "" {
		return fmt.Errorf("images.model must not be empty")
	}
	return nil
}
