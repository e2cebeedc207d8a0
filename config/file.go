package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "NEWSHARVEST_"

// DefaultPath returns ~/.newsharvest/config.yaml, or "" if the home
// directory is unknown.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".newsharvest", "config.yaml")
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// File doesn't exist -- not an error
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides cfg from NEWSHARVEST_* variables.
func applyEnv(cfg *Config) error {
	texts := map[string]*string{
		"ADDR":             &cfg.Server.Addr,
		"API_KEY":          &cfg.Server.APIKey,
		"STORE_TYPE":       &cfg.Store.Type,
		"STORE_DSN":        &cfg.Store.DSN,
		"REDIS_KEY":        &cfg.Store.RedisKey,
		"LOG_LEVEL":        &cfg.Logging.Level,
		"SWEEP_SCHEDULE":   &cfg.Server.SweepSchedule,
		"NAVIGATION_UNTIL": &cfg.Scrape.Navigation.WaitUntil,
	}
	for name, dst := range texts {
		if v, ok := lookupEnv(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CONCURRENCY":         &cfg.Scrape.Concurrency,
		"RATE_BURST":          &cfg.Server.RateBurst,
		"NAVIGATION_ATTEMPTS": &cfg.Scrape.Navigation.Attempts,
		"SCROLL_STEP":         &cfg.Scrape.Scroll.Step,
	}
	for name, dst := range ints {
		if v, ok := lookupEnv(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	if v, ok := lookupEnv("RATE_LIMIT"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sRATE_LIMIT: %w", EnvPrefix, err)
		}
		cfg.Server.RateLimit = rps
	}

	durations := map[string]*time.Duration{
		"RUN_TIMEOUT":         &cfg.Scrape.RunTimeout,
		"NAVIGATION_TIMEOUT":  &cfg.Scrape.Navigation.Timeout,
		"NAVIGATION_BACKOFF":  &cfg.Scrape.Navigation.Backoff,
		"SELECTOR_TIMEOUT":    &cfg.Scrape.SelectorTimeout,
		"SCROLL_INTERVAL":     &cfg.Scrape.Scroll.Interval,
		"SCROLL_TIMEOUT":      &cfg.Scrape.Scroll.Timeout,
		"DELAY_MIN":           &cfg.Scrape.DelayMin,
		"DELAY_MAX":           &cfg.Scrape.DelayMax,
		"WEBHOOK_TIMEOUT":     &cfg.Scrape.WebhookTimeout,
		"IMAGE_CHECK_TIMEOUT": &cfg.Scrape.ImageCheckTimeout,
	}
	for name, dst := range durations {
		if v, ok := lookupEnv(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	lists := map[string]*[]string{
		"USER_AGENTS": &cfg.Scrape.UserAgents,
		"LOCALES":     &cfg.Scrape.Locales,
	}
	for name, dst := range lists {
		if v, ok := lookupEnv(name); ok {
			*dst = splitList(v)
		}
	}

	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// splitList splits on "|" since user agents contain commas.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
