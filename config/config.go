// Package config loads runtime settings from the environment and the
// per-portal selector files. Selectors live in YAML so they can be tuned
// after a portal markup change without a rebuild.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds process-level settings. All of it comes from environment
// variables, optionally seeded from a .env file.
type Config struct {
	Headless      bool
	StatePath     string
	DatasetPath   string
	LocationCache string
	PortalsDir    string
	PostgresDSN   string
	CronSchedule  string
	MaxConcurrent int
	LogFile       string
}

// Load reads .env (if present) and the environment. Missing variables get
// working defaults so a bare `immopipe` run works out of the box.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Headless:      envBool("HEADLESS", true),
		StatePath:     envStr("STATE_PATH", "data/immopipe.db"),
		DatasetPath:   envStr("DATASET_PATH", "data/dataset.jsonl"),
		LocationCache: envStr("LOCATION_CACHE_PATH", "data/locations.json"),
		PortalsDir:    envStr("PORTALS_DIR", "config/portals"),
		PostgresDSN:   envStr("POSTGRES_DSN", os.Getenv("DATABASE_URL")),
		CronSchedule:  os.Getenv("CRON_SCHEDULE"),
		MaxConcurrent: envInt("MAX_CONCURRENT", 1),
		LogFile:       os.Getenv("LOG_FILE"),
	}

	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT must be >= 1, got %d", cfg.MaxConcurrent)
	}
	return cfg, nil
}

// PortalConfig is one portal's tunable surface: the selectors used on its
// result and detail pages plus crawl pacing.
type PortalConfig struct {
	Portal        string            `yaml:"portal"`
	BaseURL       string            `yaml:"base_url"`
	ResultLinks   []string          `yaml:"result_links"`
	Detail        map[string]string `yaml:"detail"`
	MaxPages      int               `yaml:"max_pages"`
	MinDelayMs    int               `yaml:"min_delay_ms"`
	MaxDelayMs    int               `yaml:"max_delay_ms"`
	RetryAttempts int               `yaml:"retry_attempts"`
}

// LoadPortal reads config/portals/<portal>.yaml.
func LoadPortal(dir, portal string) (*PortalConfig, error) {
	path := filepath.Join(dir, portal+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portal config: %w", err)
	}
	var pc PortalConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("parse portal config %s: %w", path, err)
	}
	if pc.Portal == "" {
		pc.Portal = portal
	}
	if pc.MaxPages <= 0 {
		pc.MaxPages = 5
	}
	if pc.MinDelayMs <= 0 {
		pc.MinDelayMs = 1000
	}
	if pc.MaxDelayMs <= pc.MinDelayMs {
		pc.MaxDelayMs = pc.MinDelayMs + 2000
	}
	if pc.RetryAttempts <= 0 {
		pc.RetryAttempts = 3
	}
	return &pc, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
