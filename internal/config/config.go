package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

type AppConfig struct {
	Port        string
	HTTPTimeout time.Duration

	// StoreBackend is "memory" or "sqlite".
	StoreBackend string
	DBPath       string

	// NotifyBackend is "log", "pubsub" or "telegram".
	NotifyBackend string
	GCPProject    string
	TelegramToken string

	TasksBucket        string
	TasksFileKey       string
	TasksFile          string // local file seeded into the store at startup
	RawBucket          string
	SchedulingRuleName string
	FailureTopic       string

	DailyLimit  float64
	HourlyLimit *float64 // nil when the provider has no hourly window
	MinuteLimit float64

	Pricing extraction.Pricing

	GeocoderAPIKey string
	ArchiveBaseURL string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Its values
// are exported into the environment unless already set there.
type fileConfig map[string]any

// Load reads configuration from .env, the optional YAML overlay and the
// environment, in increasing order of precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadOverlay(path); err != nil {
			return nil, err
		}
	}

	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")
	if cfg.HTTPTimeout, err = time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", "memory"))
	cfg.DBPath = getenvDefault("DB_PATH", "weather-extraction.db")

	cfg.NotifyBackend = strings.ToLower(getenvDefault("NOTIFY_BACKEND", "log"))
	cfg.GCPProject = os.Getenv("GCP_PROJECT")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	cfg.TasksBucket = getenvDefault("TASKS_BUCKET", "tasks")
	cfg.TasksFileKey = getenvDefault("TASKS_FILE_KEY", "tasks.json")
	cfg.TasksFile = os.Getenv("TASKS_FILE")
	cfg.RawBucket = getenvDefault("RAW_BUCKET", "raw")
	cfg.SchedulingRuleName = getenvDefault("SCHEDULING_RULE_NAME", "extraction-schedule")
	cfg.FailureTopic = getenvDefault("FAILURE_TOPIC", "extraction-failures")

	if cfg.DailyLimit, err = getenvFloat("DAILY_LIMIT", 10000); err != nil {
		return nil, err
	}
	if cfg.MinuteLimit, err = getenvFloat("MINUTE_LIMIT", 600); err != nil {
		return nil, err
	}
	// "none" disables the hourly window.
	if v := getenvDefault("HOURLY_LIMIT", "5000"); !strings.EqualFold(v, "none") {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid HOURLY_LIMIT: %w", err)
		}
		cfg.HourlyLimit = &h
	}

	cfg.Pricing = extraction.DefaultPricing
	if cfg.Pricing.CallsPerFeature, err = getenvFloat("PRICING_CALLS_PER_FEATURE", extraction.DefaultPricing.CallsPerFeature); err != nil {
		return nil, err
	}
	if cfg.Pricing.WeeksPerBlock, err = getenvFloat("PRICING_WEEKS_PER_BLOCK", extraction.DefaultPricing.WeeksPerBlock); err != nil {
		return nil, err
	}
	if cfg.Pricing.CallsPerBlock, err = getenvFloat("PRICING_CALLS_PER_BLOCK", extraction.DefaultPricing.CallsPerBlock); err != nil {
		return nil, err
	}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.ArchiveBaseURL = os.Getenv("ARCHIVE_BASE_URL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and limits.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.NotifyBackend {
	case "log":
	case "pubsub":
		if c.GCPProject == "" {
			errs = append(errs, errors.New("GCP_PROJECT is required for the pubsub notifier"))
		}
	case "telegram":
		if c.TelegramToken == "" {
			errs = append(errs, errors.New("TELEGRAM_TOKEN is required for the telegram notifier"))
		}
		if _, err := strconv.ParseInt(c.FailureTopic, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("FAILURE_TOPIC must be a telegram chat id, got %q", c.FailureTopic))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_BACKEND %q", c.NotifyBackend))
	}
	if c.DailyLimit < 0 || c.MinuteLimit < 0 || (c.HourlyLimit != nil && *c.HourlyLimit < 0) {
		errs = append(errs, errors.New("request limits must be non-negative"))
	}
	if err := c.Pricing.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ActivationInput returns the scheduled activation settings. Quota fields
// are left for the runner to fill.
func (c *AppConfig) ActivationInput() extraction.ActivationInput {
	return extraction.ActivationInput{
		TasksBucket:        c.TasksBucket,
		TasksFileKey:       c.TasksFileKey,
		SchedulingRuleName: c.SchedulingRuleName,
		FailureTopic:       c.FailureTopic,
		RawBucket:          c.RawBucket,
	}
}

func loadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range fc {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(v)); err != nil {
			return fmt.Errorf("apply config key %s: %w", key, err)
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
