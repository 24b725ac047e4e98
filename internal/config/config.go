// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// JobsConfig governs job persistence and worker pacing.
type JobsConfig struct {
	Dir                   string `mapstructure:"dir"`
	PollIntervalMs        int    `mapstructure:"poll_interval_ms"`
	PageDelayMs           int    `mapstructure:"page_delay_ms"`
	MaxSuggestionsPerPage int    `mapstructure:"max_suggestions_per_page"`
}

// CrawlerConfig governs site discovery.
type CrawlerConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	DelayMs         int    `mapstructure:"delay_ms"`
	MaxPagesDefault int    `mapstructure:"max_pages_default"`
	IgnoreRobots    bool   `mapstructure:"ignore_robots"`
}

// AnalyzerConfig configures the LLM collaborator.
type AnalyzerConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSPECTOR")
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
	v.SetDefault("jobs.dir", "jobs")
	v.SetDefault("jobs.poll_interval_ms", 1000)
	v.SetDefault("jobs.page_delay_ms", 500)
	v.SetDefault("jobs.max_suggestions_per_page", 5)
	v.SetDefault("crawler.user_agent", "inlink-prospector/0.1")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.delay_ms", 500)
	v.SetDefault("crawler.max_pages_default", 100)
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("analyzer.model", "gpt-4o-mini")
	v.SetDefault("analyzer.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Jobs.Dir) == "" {
		return fmt.Errorf("jobs.dir is required")
	}
	if c.Jobs.PollIntervalMs <= 0 {
		return fmt.Errorf("jobs.poll_interval_ms must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawler.max_pages_default must be > 0")
	}
	return nil
}

// PollInterval converts the configured poll cadence to a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollIntervalMs) * time.Millisecond
}

// PageDelay converts the configured per-page delay to a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Jobs.PageDelayMs) * time.Millisecond
}
