package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/scorer"
)

// EnvPath names the environment variable consulted when no --config flag is given.
const EnvPath = "JOBENRICH_CONFIG"

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultStorePath     = "jobs.db"
	defaultScheduleSpec  = "@every 6h"
)

// Config is the root configuration for jobenrich.
type Config struct {
	Store        StoreConfig
	Lock         LockConfig
	Enrich       EnrichConfig
	Schedule     ScheduleConfig
	Notification NotificationConfig
	AI           AIConfig
	Browse       BrowseConfig
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Driver      string        // "sqlite" or "postgres"
	Path        string        // sqlite file
	DSN         string        // postgres connection URL
	CallTimeout time.Duration // per store call
	Retries     int           // extra attempts on a transient failure
	RetryDelay  time.Duration // first backoff, doubled per attempt
}

// LockConfig selects how concurrent runs are kept off the same job.
type LockConfig struct {
	Type     string // "memory" or "redis"
	RedisURL string
	TTL      time.Duration
}

type EnrichConfig struct {
	Workers              int
	MinDescriptionLength int
	TaxonomyPath         string // empty means the embedded tables
}

// ScheduleConfig drives `jobenrich schedule`.
type ScheduleConfig struct {
	Spec     string
	Selector model.Selector
}

// NotificationConfig controls which reporter is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// AIConfig controls the optional OpenAI insights layer.
type AIConfig struct {
	Enabled  bool
	BaseURL  string        // defaults to https://api.openai.com/v1
	Model    string        // OpenAI model identifier, e.g. "gpt-4o-mini"
	APIKey   string        // expanded from env var by Load
	Timeout  time.Duration // per-request timeout
	MinDelay time.Duration // minimum gap between requests
}

type BrowseConfig struct {
	QualityThreshold int // jobs scoring below this land in the "needs work" pane
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Store        rawStoreConfig     `yaml:"store"`
	Lock         rawLockConfig      `yaml:"lock"`
	Enrich       rawEnrichConfig    `yaml:"enrich"`
	Schedule     rawScheduleConfig  `yaml:"schedule"`
	Notification NotificationConfig `yaml:"notification"`
	AI           rawAIConfig        `yaml:"ai"`
	Browse       rawBrowseConfig    `yaml:"browse"`
}

type rawStoreConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	DSN         string `yaml:"dsn"`
	CallTimeout string `yaml:"call_timeout"`
	Retries     *int   `yaml:"retries"`
	RetryDelay  string `yaml:"retry_delay"`
}

type rawLockConfig struct {
	Type     string `yaml:"type"`
	RedisURL string `yaml:"redis_url"`
	TTL      string `yaml:"ttl"`
}

type rawEnrichConfig struct {
	Workers              int    `yaml:"workers"`
	MinDescriptionLength int    `yaml:"min_description_length"`
	TaxonomyPath         string `yaml:"taxonomy_path"`
}

type rawScheduleConfig struct {
	Spec     string          `yaml:"spec"`
	Selector *model.Selector `yaml:"selector"`
}

type rawAIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
	MinDelay string `yaml:"min_delay"`
}

type rawBrowseConfig struct {
	QualityThreshold int `yaml:"quality_threshold"`
}

// ResolvePath applies the lookup order --config flag, then $JOBENRICH_CONFIG,
// then ./config.yaml.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return "config.yaml"
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes. ${VAR} references are expanded
// first; every omitted field gets its default.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var err error
	d := durations{err: &err}
	cfg := &Config{
		Store: StoreConfig{
			Driver:      orDefault(strings.ToLower(raw.Store.Driver), "sqlite"),
			Path:        orDefault(raw.Store.Path, defaultStorePath),
			DSN:         raw.Store.DSN,
			CallTimeout: d.parse("store.call_timeout", raw.Store.CallTimeout, 10*time.Second),
			Retries:     2,
			RetryDelay:  d.parse("store.retry_delay", raw.Store.RetryDelay, 500*time.Millisecond),
		},
		Lock: LockConfig{
			Type:     orDefault(strings.ToLower(raw.Lock.Type), "memory"),
			RedisURL: raw.Lock.RedisURL,
			TTL:      d.parse("lock.ttl", raw.Lock.TTL, 2*time.Minute),
		},
		Enrich: EnrichConfig{
			Workers:              raw.Enrich.Workers,
			MinDescriptionLength: raw.Enrich.MinDescriptionLength,
			TaxonomyPath:         raw.Enrich.TaxonomyPath,
		},
		Schedule: ScheduleConfig{
			Spec:     orDefault(raw.Schedule.Spec, defaultScheduleSpec),
			Selector: model.Selector{All: true},
		},
		Notification: NotificationConfig{
			Type:       orDefault(strings.ToLower(raw.Notification.Type), "log"),
			WebhookURL: raw.Notification.WebhookURL,
		},
		AI: AIConfig{
			Enabled:  raw.AI.Enabled,
			BaseURL:  strings.TrimRight(orDefault(raw.AI.BaseURL, defaultOpenAIBaseURL), "/"),
			Model:    raw.AI.Model,
			APIKey:   raw.AI.APIKey,
			Timeout:  d.parse("ai.timeout", raw.AI.Timeout, 30*time.Second),
			MinDelay: d.parse("ai.min_delay", raw.AI.MinDelay, time.Second),
		},
		Browse: BrowseConfig{
			QualityThreshold: raw.Browse.QualityThreshold,
		},
	}
	if err != nil {
		return nil, err
	}

	if raw.Store.Retries != nil {
		cfg.Store.Retries = *raw.Store.Retries
	}
	if cfg.Enrich.Workers == 0 {
		cfg.Enrich.Workers = 1
	}
	if cfg.Enrich.MinDescriptionLength == 0 {
		cfg.Enrich.MinDescriptionLength = scorer.DefaultMinDescriptionLength
	}
	if raw.Schedule.Selector != nil {
		cfg.Schedule.Selector = *raw.Schedule.Selector
	}
	if cfg.Browse.QualityThreshold == 0 {
		cfg.Browse.QualityThreshold = 60
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// durations parses optional duration strings, keeping the first error.
type durations struct {
	err *error
}

func (d durations) parse(field, s string, def time.Duration) time.Duration {
	if s == "" || *d.err != nil {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		*d.err = fmt.Errorf("parse %s %q: %w", field, s, err)
		return def
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Driver)
	}
	if cfg.Store.CallTimeout < 0 {
		return fmt.Errorf("store.call_timeout must not be negative, got %v", cfg.Store.CallTimeout)
	}
	if cfg.Store.Retries < 0 || cfg.Store.Retries > 10 {
		return fmt.Errorf("store.retries must be between 0 and 10, got %d", cfg.Store.Retries)
	}

	switch cfg.Lock.Type {
	case "memory":
	case "redis":
		if cfg.Lock.RedisURL == "" {
			return fmt.Errorf("lock.redis_url is required when lock.type is \"redis\"")
		}
		if cfg.Lock.TTL <= 0 {
			return fmt.Errorf("lock.ttl must be positive, got %v", cfg.Lock.TTL)
		}
	default:
		return fmt.Errorf("lock.type must be \"memory\" or \"redis\", got %q", cfg.Lock.Type)
	}

	if cfg.Enrich.Workers < 1 || cfg.Enrich.Workers > 64 {
		return fmt.Errorf("enrich.workers must be between 1 and 64, got %d", cfg.Enrich.Workers)
	}
	if cfg.Enrich.MinDescriptionLength < 0 {
		return fmt.Errorf("enrich.min_description_length must not be negative")
	}

	if err := cfg.Schedule.Selector.Validate(); err != nil {
		return fmt.Errorf("schedule.selector: %w", err)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
	}

	if cfg.Browse.QualityThreshold < 0 || cfg.Browse.QualityThreshold > 100 {
		return fmt.Errorf("browse.quality_threshold must be between 0 and 100, got %d", cfg.Browse.QualityThreshold)
	}

	return nil
}
