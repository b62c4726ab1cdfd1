// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "chromium", cfg.Browser.Engine)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.Equal(t, 1080, cfg.Browser.ViewportHeight)
	assert.Equal(t, "test_results", cfg.Browser.ResultsDir)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Browser.DOMContentTimeout)
	assert.Equal(t, time.Second, cfg.Browser.SettleDelay)
	assert.Equal(t, 5*time.Second, cfg.Browser.PostActionWait)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.APIKey)

	assert.Equal(t, 256, cfg.Validation.CacheSize)
	assert.Equal(t, 4000, cfg.Validation.MaxPageContent)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  headless: false
  engine: chrome
  results_dir: /tmp/shots
testrail:
  url: https://example.testrail.io
  username: tester@example.com
  api_key: key
llm:
  api_key: llm-key
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "chrome", cfg.Browser.Engine)
	assert.Equal(t, "/tmp/shots", cfg.Browser.ResultsDir)
	assert.Equal(t, "https://example.testrail.io", cfg.TestRail.URL)
	assert.Equal(t, "llm-key", cfg.LLM.APIKey)
	// Unset values keep their defaults.
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	// No config.yaml on the default search path in this package directory.
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "chromium", cfg.Browser.Engine)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TESTFLOW_LLM_API_KEY", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: gemini-2.0-flash\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  engine: firefox\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported browser engine")
}
