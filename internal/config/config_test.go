package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/museworks/muse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8100", cfg.Server.Listen)
	assert.Equal(t, "web", cfg.Server.WebDir)
	assert.Equal(t, "muse.db", cfg.Storage.Path)
	assert.Equal(t, "gemini-1.5-pro", cfg.Models.Default)
	assert.Equal(t, "imagen-3.0-generate-002", cfg.Images.Model)
	assert.Empty(t, cfg.Providers.GoogleAPIKey)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muse.yaml")
	content := `
server:
  listen: "127.0.0.1:9000"
providers:
  groq_api_key: "gsk-test"
models:
  default: "llama3-8b-8192"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, "gsk-test", cfg.Providers.GroqAPIKey)
	assert.Equal(t, "llama3-8b-8192", cfg.Models.Default)
	assert.Equal(t, "muse.db", cfg.Storage.Path, "unset keys keep defaults")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MUSE_PROVIDERS_GOOGLE_API_KEY", "aiza-test")
	t.Setenv("MUSE_STORAGE_PATH", "/tmp/other.db")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "aiza-test", cfg.Providers.GoogleAPIKey)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Storage.Path = ""
	assert.ErrorContains(t, cfg.Validate(), "storage.path")

	cfg, err = config.Load("")
	require.NoError(t, err)
	cfg.Models.Default = ""
	assert.ErrorContains(t, cfg.Validate(), "models.default")
}
