package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SearchURL  string
	MaxPages   int
	Headless   bool
	OutputPath string
	DebugDir   string
	DBPath     string
	PGDSN      string
	SiteID     string
	LogLevel   string
	Proxy      ProxyConfig
	S3         S3Config
	Scheduler  SchedulerConfig
	Crawl      CrawlConfig
	Sites      map[string]*SiteProfile
}

type ProxyConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// CrawlConfig holds pacing knobs for the pagination walk. Zero values fall
// back to the per-site defaults in the scraper package.
type CrawlConfig struct {
	SettleDelay time.Duration
	PacingDelay time.Duration
	ScrollPause time.Duration
}

// SelectorRule is one named entry of an ordered fallback chain. Rules are
// tried top to bottom; the first that yields results wins.
type SelectorRule struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// SiteProfile describes how one target site is crawled: how listing cards
// are detected, which links count as detail pages, how pagination advances.
type SiteProfile struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	CardStrategies []SelectorRule `yaml:"card_strategies"`
	NextRules      []SelectorRule `yaml:"next_rules"`
	ReadySignals   []string       `yaml:"ready_signals"`
	PathPatterns   []string       `yaml:"path_patterns"`
	CookieSelector string         `yaml:"cookie_selector"`
	CardsPresent   string         `yaml:"cards_present"`
}

// DefaultProfile is the built-in metrocuadrado.com profile, used when no
// YAML profile matches the configured site ID.
func DefaultProfile() *SiteProfile {
	return &SiteProfile{
		ID:   "metrocuadrado",
		Name: "Metrocuadrado",
		CardStrategies: []SelectorRule{
			{Name: "testid", Selector: "div[data-testid='m2-card-listings-container']"},
			{Name: "class", Selector: "div.m2-card-listing"},
			{Name: "generic", Selector: "div[class*='card']"},
		},
		NextRules: []SelectorRule{
			{Name: "aria", Selector: "a[aria-label='Siguiente página']"},
			{Name: "class", Selector: "a.m2-pagination__next"},
			{Name: "text", Selector: "a:has-text('Siguiente')"},
		},
		ReadySignals: []string{
			"h1[data-testid='title-listing-detail']",
			"div.listing-detail",
		},
		PathPatterns:   []string{"/inmueble/", "/proyecto/"},
		CookieSelector: "button:has-text('Aceptar todo')",
		CardsPresent:   "div.m2-card-listing, div[data-testid='m2-card-listings-container']",
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SearchURL:  os.Getenv("SEARCH_URL"),
		MaxPages:   getEnvInt("MAX_PAGES", 3),
		Headless:   getEnv("HEADLESS", "true") == "true",
		OutputPath: getEnv("OUTPUT_FILE", "metrocuadrado_properties.csv"),
		DebugDir:   getEnv("DEBUG_DIR", "debug_screenshots"),
		DBPath:     getEnv("DB_PATH", "harvester.db"),
		PGDSN:      os.Getenv("PG_DSN"),
		SiteID:     getEnv("SITE_ID", "metrocuadrado"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("CRAWL_CRON"),
		},
		Crawl: CrawlConfig{
			SettleDelay: time.Duration(getEnvInt("SETTLE_DELAY_MS", 0)) * time.Millisecond,
			PacingDelay: time.Duration(getEnvInt("PACING_DELAY_MS", 0)) * time.Millisecond,
			ScrollPause: time.Duration(getEnvInt("SCROLL_PAUSE_MS", 0)) * time.Millisecond,
		},
		Sites: make(map[string]*SiteProfile),
	}

	if interval := os.Getenv("CRAWL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteProfiles(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects bad configuration at startup, before any browser session
// is acquired.
func (c *Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("SEARCH_URL is required")
	}
	if _, err := url.ParseRequestURI(c.SearchURL); err != nil {
		return fmt.Errorf("invalid SEARCH_URL: %w", err)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be a positive integer, got %d", c.MaxPages)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("OUTPUT_FILE is required")
	}
	return nil
}

// Profile returns the active site profile, falling back to the built-in
// metrocuadrado defaults.
func (c *Config) Profile() *SiteProfile {
	if p, ok := c.Sites[c.SiteID]; ok {
		return p
	}
	return DefaultProfile()
}

func (c *Config) loadSiteProfiles() error {
	configDir := "config/sites"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteProfile
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
