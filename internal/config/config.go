// Package config loads service settings from the environment and an optional
// YAML file describing reservoirs, gauge sites and station thresholds.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Source types understood by the refresh use case
const (
	SourceReportingAPI = "reporting-api"
	SourceCatalog      = "catalog"
	SourceHTML         = "html"
	SourceDailyReport  = "daily-report"
)

// Config holds all service settings
type Config struct {
	HTTPAddr        string
	RefreshSchedule string
	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration
	DBPath          string
	WindowSize      int

	TelegramToken string
	OpenAIKey     string

	USGS USGSConfig
	CWMS CWMSConfig

	Reservoirs []ReservoirConfig
	Sites      []SiteConfig
	Stations   []entities.StationConfig
}

// USGSConfig holds the gauge graph and instantaneous values endpoints
type USGSConfig struct {
	GraphURL     string
	PageURL      string
	ValuesURL    string
	GraphPeriod  int           // Days shown on the hydrograph
	BucketSize   time.Duration // Cache-buster granularity for graph images
	GraphsTTL    time.Duration
	ReadingTTL   time.Duration
	ParameterCd  string
}

// CWMSConfig holds the time-series catalog endpoint
type CWMSConfig struct {
	BaseURL     string
	Office      string
	HistoryDays int
}

// SourceConfig is one entry of a reservoir's fallback chain
type SourceConfig struct {
	Type     string `yaml:"type"`
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"`  // html: CSS scope for the station container
	LinkText string `yaml:"link_text"` // daily-report: text of the newest report link
}

// ReservoirConfig describes a reservoir and where its metrics come from
type ReservoirConfig struct {
	ID        string                `yaml:"id"`
	Name      string                `yaml:"name"`
	StationID string                `yaml:"station_id"` // Lake thresholds for the elevation
	Hints     []string              `yaml:"hints"`      // Location names used to find it upstream
	Sources   []SourceConfig        `yaml:"sources"`
	Metrics   []entities.MetricSpec `yaml:"metrics"`
}

// SiteConfig is a USGS gauge shown on the board
type SiteConfig struct {
	SiteNo string `yaml:"site_no"`
	Title  string `yaml:"title"`
}

// fileConfig is the optional YAML overlay; empty sections keep the defaults
type fileConfig struct {
	Reservoirs []ReservoirConfig         `yaml:"reservoirs"`
	Sites      []SiteConfig              `yaml:"sites"`
	Stations   []entities.StationConfig `yaml:"stations"`
}

// Load reads configuration from .env files, environment variables and the optional
// STATIONS_FILE, applying defaults where unset.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	bucket, err := parseDuration("USGS_CACHE_BUCKET", "15m")
	if err != nil {
		return nil, err
	}
	readingTTL, err := parseDuration("USGS_READING_TTL", "15m")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		RefreshSchedule: envOrDefault("REFRESH_SCHEDULE", "@every 5m"),
		HTTPTimeout:     httpTimeout,
		ShutdownTimeout: shutdownTimeout,
		DBPath:          os.Getenv("DB_PATH"),
		WindowSize:      parsePositiveInt("EXTRACT_WINDOW", 4000),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),

		USGS: USGSConfig{
			GraphURL:    envOrDefault("USGS_GRAPH_URL", "https://waterdata.usgs.gov/nwisweb/graph"),
			PageURL:     envOrDefault("USGS_PAGE_URL", "https://waterdata.usgs.gov/monitoring-location"),
			ValuesURL:   envOrDefault("USGS_VALUES_URL", "https://waterservices.usgs.gov/nwis/iv/"),
			GraphPeriod: parsePositiveInt("USGS_GRAPH_PERIOD", 7),
			BucketSize:  bucket,
			GraphsTTL:   time.Hour,
			ReadingTTL:  readingTTL,
			ParameterCd: "00065",
		},
		CWMS: CWMSConfig{
			BaseURL:     envOrDefault("CWMS_BASE_URL", "https://cwms-data.usace.army.mil/cwms-data"),
			Office:      envOrDefault("CWMS_OFFICE", "LRL"),
			HistoryDays: parsePositiveInt("CWMS_HISTORY_DAYS", 7),
		},

		Reservoirs: DefaultReservoirs(),
		Sites:      DefaultSites(),
		Stations:   DefaultStations(),
	}

	if path := os.Getenv("STATIONS_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for obvious mistakes
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid REFRESH_SCHEDULE %q: %w", c.RefreshSchedule, err)
	}
	if c.USGS.BucketSize < time.Second {
		return errors.New("USGS_CACHE_BUCKET must be at least 1s")
	}

	seen := make(map[string]bool)
	for _, r := range c.Reservoirs {
		if r.ID == "" {
			return errors.New("reservoir id is required")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate reservoir id %q", r.ID)
		}
		seen[r.ID] = true

		if len(r.Sources) == 0 {
			return fmt.Errorf("reservoir %q has no sources", r.ID)
		}
		for _, s := range r.Sources {
			switch s.Type {
			case SourceReportingAPI, SourceHTML, SourceDailyReport:
				if s.URL == "" {
					return fmt.Errorf("reservoir %q source %q has no url", r.ID, s.Type)
				}
			case SourceCatalog:
			default:
				return fmt.Errorf("reservoir %q has unknown source type %q", r.ID, s.Type)
			}
		}
		if len(r.Metrics) == 0 {
			return fmt.Errorf("reservoir %q has no metrics", r.ID)
		}
	}

	for _, st := range c.Stations {
		switch st.Type {
		case entities.StationRange:
			if st.Min > st.Max {
				return fmt.Errorf("station %q has min above max", st.ID)
			}
		case entities.StationFlood:
			if len(st.Stages) == 0 {
				return fmt.Errorf("station %q has no flood stages", st.ID)
			}
		case entities.StationLake:
			if st.Average <= 0 {
				return fmt.Errorf("station %q has no average elevation", st.ID)
			}
		default:
			return fmt.Errorf("station %q has unknown type %q", st.ID, st.Type)
		}
	}

	return nil
}

// Reservoir returns the reservoir with the given id
func (c *Config) Reservoir(id string) (ReservoirConfig, bool) {
	for _, r := range c.Reservoirs {
		if r.ID == id {
			return r, true
		}
	}
	return ReservoirConfig{}, false
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read stations file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse stations file %s: %w", path, err)
	}

	if len(fc.Reservoirs) > 0 {
		c.Reservoirs = fc.Reservoirs
	}
	if len(fc.Sites) > 0 {
		c.Sites = fc.Sites
	}
	if len(fc.Stations) > 0 {
		c.Stations = fc.Stations
	}

	log.Printf("Loaded %d reservoirs, %d sites and %d stations from %s",
		len(c.Reservoirs), len(c.Sites), len(c.Stations), path)
	return nil
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local then .env.
// Missing files are ignored.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
