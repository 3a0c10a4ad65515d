package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int
	DBPath      string
	CacheDriver string
	DatabaseURL string
	CacheTTL    time.Duration
	MatchMode   string
	LogPath     string
	Sweep       SweepConfig
	Refresh     RefreshConfig
	LLM         LLMConfig
	Portal      PortalConfig
}

type SweepConfig struct {
	Cron string
}

type RefreshConfig struct {
	Enabled   bool
	BatchSize int
	Interval  time.Duration
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// PortalConfig describes the upstream property portal: endpoints, request
// headers and the portal's internal property-type ids. Loaded from
// config/portal.yaml when present, otherwise the compiled-in defaults.
type PortalConfig struct {
	BaseURL       string            `yaml:"base_url"`
	SearchPath    string            `yaml:"search_path"`
	DataPath      string            `yaml:"data_path"`
	LocationsPath string            `yaml:"locations_path"`
	UserAgent     string            `yaml:"user_agent"`
	Referer       string            `yaml:"referer"`
	MaxPages      int               `yaml:"max_pages"`
	RateLimitMS   int               `yaml:"rate_limit_ms"`
	PropertyTypes map[string]string `yaml:"property_types"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 5055),
		DBPath:      getEnv("DB_PATH", "propsearch.db"),
		CacheDriver: getEnv("CACHE_DRIVER", "sqlite"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CacheTTL:    getEnvDuration("CACHE_TTL", 24*time.Hour),
		MatchMode:   getEnv("MATCH_MODE", "exact"),
		LogPath:     getEnv("LOG_PATH", "propsearch.log"),
		Sweep: SweepConfig{
			Cron: os.Getenv("SWEEP_CRON"),
		},
		Refresh: RefreshConfig{
			Enabled:   os.Getenv("REFRESH_ENABLED") != "false",
			BatchSize: getEnvInt("REFRESH_BATCH", 5),
			Interval:  getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Portal: defaultPortalConfig(),
	}

	switch cfg.CacheDriver {
	case "sqlite", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown CACHE_DRIVER: %s", cfg.CacheDriver)
	}
	if cfg.CacheDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("CACHE_DRIVER=postgres requires DATABASE_URL")
	}
	switch cfg.MatchMode {
	case "exact", "min":
	default:
		return nil, fmt.Errorf("unknown MATCH_MODE: %s", cfg.MatchMode)
	}

	if err := cfg.loadPortalConfig("config/portal.yaml"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPortalConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var portal PortalConfig
	if err := yaml.Unmarshal(data, &portal); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	// Partial overrides are fine; unset fields keep their defaults.
	if portal.BaseURL != "" {
		c.Portal.BaseURL = portal.BaseURL
	}
	if portal.SearchPath != "" {
		c.Portal.SearchPath = portal.SearchPath
	}
	if portal.DataPath != "" {
		c.Portal.DataPath = portal.DataPath
	}
	if portal.LocationsPath != "" {
		c.Portal.LocationsPath = portal.LocationsPath
	}
	if portal.UserAgent != "" {
		c.Portal.UserAgent = portal.UserAgent
	}
	if portal.Referer != "" {
		c.Portal.Referer = portal.Referer
	}
	if portal.MaxPages > 0 {
		c.Portal.MaxPages = portal.MaxPages
	}
	if portal.RateLimitMS > 0 {
		c.Portal.RateLimitMS = portal.RateLimitMS
	}
	if len(portal.PropertyTypes) > 0 {
		c.Portal.PropertyTypes = portal.PropertyTypes
	}
	return nil
}

func defaultPortalConfig() PortalConfig {
	return PortalConfig{
		BaseURL:       "https://www.propertyfinder.ae",
		SearchPath:    "/en/search",
		DataPath:      "/search/_next/data/%s/en/search.json",
		LocationsPath: "/api/pwa/locations",
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
		Referer:       "https://www.propertyfinder.ae/en/buy/dubai/villas-for-sale.html",
		MaxPages:      10,
		RateLimitMS:   500,
		PropertyTypes: map[string]string{
			"apartment":               "1",
			"villa":                   "35",
			"townhouse":               "22",
			"penthouse":               "20",
			"compound":                "42",
			"duplex":                  "24",
			"full floor":              "18",
			"half floor":              "29",
			"whole building":          "10",
			"land":                    "5",
			"bulk sale unit":          "30",
			"bungalow":                "31",
			"hotel & hotel apartment": "45",
		},
	}
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

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
