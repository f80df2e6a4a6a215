package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, "scrapegoat/0.1", cfg.Crawler.UserAgent)
	require.Equal(t, 4, cfg.Crawler.MaxConcurrency)
	require.Equal(t, 2.0, cfg.Crawler.MaxRequestsPerSecond)
	require.Equal(t, 50, cfg.Crawler.ContentMinChars)
	require.Empty(t, cfg.Proxy.Proxies)
	require.Equal(t, int64(10<<20), cfg.Media.MaxBytes)
	require.Equal(t, "llama3", cfg.LLM.Model)

	require.Equal(t, 30*time.Second, cfg.NavTimeout())
	require.Equal(t, time.Duration(0), cfg.SettleDelay())
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9191
logging:
  development: false
crawler:
  user_agent: custom-agent
  nav_timeout_seconds: 12
  settle_delay_ms: 250
  max_concurrency: 8
  max_requests_per_second: 0.5
proxy:
  proxies:
    - http://p1.example.com:3128
    - socks5://p2.example.com:1080
media:
  output_dir: /tmp/media
llm:
  endpoint: http://localhost:11434/api/generate
  model: mistral
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9191, cfg.Server.Port)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "custom-agent", cfg.Crawler.UserAgent)
	require.Equal(t, 12*time.Second, cfg.NavTimeout())
	require.Equal(t, 250*time.Millisecond, cfg.SettleDelay())
	require.Equal(t, 8, cfg.Crawler.MaxConcurrency)
	require.Equal(t, 0.5, cfg.Crawler.MaxRequestsPerSecond)
	require.Equal(t, []string{"http://p1.example.com:3128", "socks5://p2.example.com:1080"}, cfg.Proxy.Proxies)
	require.Equal(t, "/tmp/media", cfg.Media.OutputDir)
	require.Equal(t, "mistral", cfg.LLM.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SCRAPEGOAT_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := Config{
		Server:  ServerConfig{Port: 8080},
		Crawler: CrawlerConfig{MaxConcurrency: 2, NavTimeoutSeconds: 10},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Server.Port = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Crawler.MaxConcurrency = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Crawler.NavTimeoutSeconds = -1
	require.Error(t, bad.Validate())

	bad = base
	bad.Crawler.MaxRequestsPerSecond = -0.1
	require.Error(t, bad.Validate())
}
