package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  title: "Test Blog"
  base_url: "https://example.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "content", cfg.Paths.Content)
	require.Equal(t, ".build-hash.json", cfg.Paths.HashStore)
	require.Equal(t, "journals.md", cfg.Paths.JournalScratch)
	require.Equal(t, 300*time.Millisecond, cfg.Serve.Debounce)
	require.Equal(t, "Test Blog", cfg.Site.Author) // falls back to title
	require.Equal(t, path, cfg.ConfigPath)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("BLOG_BASE_URL", "https://blog.example.org")
	path := writeConfig(t, `
site:
  title: "Env Blog"
  base_url: "${BLOG_BASE_URL}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://blog.example.org", cfg.Site.BaseURL)
}

func TestLoadRejectsMissingTitle(t *testing.T) {
	path := writeConfig(t, `
site:
  base_url: "https://example.com"
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "site.title")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestYearRange(t *testing.T) {
	cfg := &Config{}
	cfg.Site.StartYear = 2021
	require.Contains(t, cfg.YearRange(), "2021-")

	cfg.Site.StartYear = 0
	require.NotContains(t, cfg.YearRange(), "-")
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := writeConfig(t, "site: {}")
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "My Blog", cfg.Site.Title)
}
