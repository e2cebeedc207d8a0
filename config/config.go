// Package config loads newsharvest's process configuration from YAML and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pevans/newsharvest"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/logger"
	"github.com/pevans/newsharvest/render"
	"github.com/pevans/newsharvest/seen"
	"github.com/robfig/cron/v3"
)

// Config is the whole process configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Logging logger.Config `yaml:"logging"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// APIKey, when set, must be sent as "Authorization: Bearer <key>".
	APIKey string `yaml:"api_key"`
	// RateLimit is scrape requests per second; zero disables the limit.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// SweepSchedule is a cron expression for periodic seen-store sweeps
	// while serving. Empty disables them.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// StoreConfig selects the seen-article backend.
type StoreConfig struct {
	Type     string `yaml:"type"` // sqlite, postgres, redis or memory
	DSN      string `yaml:"dsn"`
	RedisKey string `yaml:"redis_key"`
}

// NavigationConfig is the retry policy for page loads.
type NavigationConfig struct {
	Attempts   int           `yaml:"attempts"`
	Timeout    time.Duration `yaml:"timeout"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
	WaitUntil  string        `yaml:"wait_until"`
}

// ScrollConfig controls the lazy-load scroll on article pages.
type ScrollConfig struct {
	Step     int           `yaml:"step"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ScrapeConfig holds the pipeline tunables.
type ScrapeConfig struct {
	Concurrency       int              `yaml:"concurrency"`
	RunTimeout        time.Duration    `yaml:"run_timeout"`
	Navigation        NavigationConfig `yaml:"navigation"`
	SelectorTimeout   time.Duration    `yaml:"selector_timeout"`
	Scroll            ScrollConfig     `yaml:"scroll"`
	DelayMin          time.Duration    `yaml:"delay_min"`
	DelayMax          time.Duration    `yaml:"delay_max"`
	WebhookTimeout    time.Duration    `yaml:"webhook_timeout"`
	ImageCheckTimeout time.Duration    `yaml:"image_check_timeout"`
	UserAgents        []string         `yaml:"user_agents"`
	Locales           []string         `yaml:"locales"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	article := discovery.DefaultProcessorConfig()
	return &Config{
		Server: ServerConfig{Addr: ":8080", RateBurst: 1},
		Store: StoreConfig{
			Type:     "sqlite",
			DSN:      seen.DefaultSQLitePath,
			RedisKey: seen.DefaultRedisKey,
		},
		Scrape: ScrapeConfig{
			Concurrency: 1,
			RunTimeout:  newsharvest.DefaultRunTimeout,
			Navigation: NavigationConfig{
				Attempts:   article.Retry.MaxAttempts,
				Timeout:    article.Retry.AttemptTimeout,
				Backoff:    article.Retry.Backoff,
				MaxBackoff: article.Retry.MaxBackoff,
				WaitUntil:  article.Retry.WaitUntil,
			},
			SelectorTimeout: article.SelectorTimeout,
			Scroll: ScrollConfig{
				Step:     article.ScrollStep,
				Interval: article.ScrollInterval,
				Timeout:  article.ScrollTimeout,
			},
			DelayMin:          discovery.DefaultDelayMin,
			DelayMax:          discovery.DefaultDelayMax,
			WebhookTimeout:    newsharvest.DefaultWebhookTimeout,
			ImageCheckTimeout: discovery.DefaultImageCheckTimeout,
		},
		Logging: logger.Config{Level: "info"},
	}
}

var validStoreTypes = map[string]bool{
	"sqlite": true, "sqlite3": true,
	"postgres": true, "postgresql": true,
	"redis":  true,
	"memory": true,
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if !validStoreTypes[strings.ToLower(c.Store.Type)] {
		errs = append(errs, fmt.Errorf("store.type %q is not one of sqlite, postgres, redis, memory", c.Store.Type))
	}
	if t := strings.ToLower(c.Store.Type); (t == "postgres" || t == "postgresql" || t == "redis") && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn is required for %s", c.Store.Type))
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("server.sweep_schedule: %w", err))
		}
	}

	s := c.Scrape
	if s.Concurrency < 1 {
		errs = append(errs, errors.New("scrape.concurrency must be at least 1"))
	}
	if s.Navigation.Attempts < 1 {
		errs = append(errs, errors.New("scrape.navigation.attempts must be at least 1"))
	}
	if s.Scroll.Step < 1 {
		errs = append(errs, errors.New("scrape.scroll.step must be at least 1"))
	}
	if s.DelayMin < 0 || s.DelayMax < 0 {
		errs = append(errs, errors.New("scrape delays must not be negative"))
	}
	if s.DelayMin > s.DelayMax {
		errs = append(errs, fmt.Errorf("scrape.delay_min (%s) is greater than scrape.delay_max (%s)", s.DelayMin, s.DelayMax))
	}
	for name, d := range map[string]time.Duration{
		"run_timeout":         s.RunTimeout,
		"navigation.timeout":  s.Navigation.Timeout,
		"selector_timeout":    s.SelectorTimeout,
		"scroll.timeout":      s.Scroll.Timeout,
		"webhook_timeout":     s.WebhookTimeout,
		"image_check_timeout": s.ImageCheckTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("scrape.%s must be positive", name))
		}
	}

	return errors.Join(errs...)
}

// SeenConfig returns the store settings in the form seen.Open takes.
func (c *Config) SeenConfig() seen.Config {
	return seen.Config{Type: c.Store.Type, DSN: c.Store.DSN, RedisKey: c.Store.RedisKey}
}

// HarvesterConfig returns the pipeline settings.
func (c *Config) HarvesterConfig() newsharvest.Config {
	s := c.Scrape
	return newsharvest.Config{
		Concurrency: s.Concurrency,
		RunTimeout:  s.RunTimeout,
		Article: discovery.ProcessorConfig{
			Retry: discovery.RetryPolicy{
				MaxAttempts:    s.Navigation.Attempts,
				AttemptTimeout: s.Navigation.Timeout,
				Backoff:        s.Navigation.Backoff,
				MaxBackoff:     s.Navigation.MaxBackoff,
				WaitUntil:      s.Navigation.WaitUntil,
			},
			SelectorTimeout: s.SelectorTimeout,
			ScrollStep:      s.Scroll.Step,
			ScrollInterval:  s.Scroll.Interval,
			ScrollTimeout:   s.Scroll.Timeout,
		},
		ImageCheckTimeout: s.ImageCheckTimeout,
	}
}

// Pacer returns the inter-article delay.
func (c *Config) Pacer() discovery.RandomPacer {
	return discovery.RandomPacer{Min: c.Scrape.DelayMin, Max: c.Scrape.DelayMax}
}

// ProviderConfig returns the rendering provider settings.
func (c *Config) ProviderConfig() render.HTTPProviderConfig {
	return render.HTTPProviderConfig{UserAgents: c.Scrape.UserAgents, Locales: c.Scrape.Locales}
}
