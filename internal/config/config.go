// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Media   MediaConfig   `mapstructure:"media"`
	LLM     LLMConfig     `mapstructure:"llm"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs the crawl pipeline.
type CrawlerConfig struct {
	UserAgent            string  `mapstructure:"user_agent"`
	NavTimeoutSeconds    int     `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs        int     `mapstructure:"settle_delay_ms"`
	MaxConcurrency       int     `mapstructure:"max_concurrency"`
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second"`
	ContentMinChars      int     `mapstructure:"content_min_chars"`
}

// ProxyConfig lists the default egress proxy rotation. Empty means direct
// connections unless a request carries its own override.
type ProxyConfig struct {
	Proxies []string `mapstructure:"proxies"`
}

// MediaConfig controls the optional image download pass.
type MediaConfig struct {
	OutputDir      string `mapstructure:"output_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBytes       int64  `mapstructure:"max_bytes"`
}

// LLMConfig points at the optional local model endpoint.
type LLMConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPEGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("crawler.user_agent", "scrapegoat/0.1")
	v.SetDefault("crawler.nav_timeout_seconds", 30)
	v.SetDefault("crawler.settle_delay_ms", 0)
	v.SetDefault("crawler.max_concurrency", 4)
	v.SetDefault("crawler.max_requests_per_second", 2)
	v.SetDefault("crawler.content_min_chars", 50)
	v.SetDefault("media.timeout_seconds", 15)
	v.SetDefault("media.max_bytes", 10<<20)
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.timeout_seconds", 20)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxConcurrency <= 0 {
		return fmt.Errorf("crawler.max_concurrency must be > 0")
	}
	if c.Crawler.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.nav_timeout_seconds must be > 0")
	}
	if c.Crawler.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("crawler.max_requests_per_second must be >= 0")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Crawler.NavTimeoutSeconds) * time.Second
}

// SettleDelay converts the configured settle delay to a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Crawler.SettleDelayMs) * time.Millisecond
}
