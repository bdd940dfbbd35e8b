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
	Environment string          `mapstructure:"environment"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Server      ServerConfig    `mapstructure:"server"`
	Directory   DirectoryConfig `mapstructure:"directory"`
	Scholar     ScholarConfig   `mapstructure:"scholar"`
	Fetch       FetchConfig     `mapstructure:"fetch"`
	Headless    HeadlessConfig  `mapstructure:"headless"`
	Classify    ClassifyConfig  `mapstructure:"classify"`
	Keyphrase   KeyphraseConfig `mapstructure:"keyphrase"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Storage     StorageConfig   `mapstructure:"storage"`
	PubSub      PubSubConfig    `mapstructure:"pubsub"`
	Progress    ProgressConfig  `mapstructure:"progress"`
	Reports     ReportsConfig   `mapstructure:"reports"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// DirectoryConfig governs staff directory discovery.
type DirectoryConfig struct {
	Institution      string   `mapstructure:"institution"`
	AffiliationTerms []string `mapstructure:"affiliation_terms"`
	MaxIndexPages    int      `mapstructure:"max_index_pages"`
	SchoolsFile      string   `mapstructure:"schools_file"`
}

// ScholarConfig governs the publication index pass.
type ScholarConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	PageSize      int     `mapstructure:"page_size"`
	MaxPages      int     `mapstructure:"max_pages"`
	MinMatchScore float64 `mapstructure:"min_match_score"`
}

// FetchConfig configures the resilient fetch client.
type FetchConfig struct {
	TimeoutSeconds      int      `mapstructure:"timeout_seconds"`
	MaxRetries          int      `mapstructure:"max_retries"`
	BackoffBaseMs       int      `mapstructure:"backoff_base_ms"`
	BackoffMaxMs        int      `mapstructure:"backoff_max_ms"`
	CooldownBaseSeconds int      `mapstructure:"cooldown_base_seconds"`
	MaxEscalations      int      `mapstructure:"max_escalations"`
	PerHostRPS          float64  `mapstructure:"per_host_rps"`
	PerHostBurst        int      `mapstructure:"per_host_burst"`
	UserAgents          []string `mapstructure:"user_agents"`
	Proxies             []string `mapstructure:"proxies"`
}

// HeadlessConfig configures the headless rendering escalation.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int  `mapstructure:"min_html_bytes"`
}

// ClassifyConfig carries relevance thresholds and the optional hosted scorer.
type ClassifyConfig struct {
	Threshold          float64 `mapstructure:"threshold"`
	InterestThreshold  float64 `mapstructure:"interest_threshold"`
	OverrideConfidence float64 `mapstructure:"override_confidence"`
	Endpoint           string  `mapstructure:"endpoint"`
	APIKey             string  `mapstructure:"api_key"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
}

// KeyphraseConfig bounds skill extraction.
type KeyphraseConfig struct {
	MaxPhrases       int     `mapstructure:"max_phrases"`
	MaxNgram         int     `mapstructure:"max_ngram"`
	ContainmentRatio float64 `mapstructure:"containment_ratio"`
}

// PipelineConfig sizes the scrape execution.
type PipelineConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// DatabaseConfig controls Postgres persistence. An empty DSN selects the
// in-memory stores.
type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	LecturerTable string `mapstructure:"lecturer_table"`
	MaxConns      int    `mapstructure:"max_conns"`
}

// StorageConfig selects the raw-page archive backend.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Bucket  string             `mapstructure:"bucket"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig holds filesystem archive settings.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ProgressConfig tunes the progress hub and its sinks.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig bounds batch size and flush latency.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// ReportsConfig locates per-run delta reports.
type ReportsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Archive backend names accepted by storage.backend.
const (
	BackendGCS    = "gcs"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EXPERTFINDER")
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
	v.SetDefault("environment", "development")
	v.SetDefault("logging.development", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("directory.institution", "University of Leeds")
	v.SetDefault("directory.affiliation_terms", []string{"university of leeds", "leeds university"})
	v.SetDefault("directory.max_index_pages", 50)
	v.SetDefault("scholar.base_url", "https://scholar.google.com")
	v.SetDefault("scholar.page_size", 100)
	v.SetDefault("scholar.max_pages", 10)
	v.SetDefault("scholar.min_match_score", 0.5)
	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_base_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 5000)
	v.SetDefault("fetch.cooldown_base_seconds", 60)
	v.SetDefault("fetch.max_escalations", 3)
	v.SetDefault("fetch.per_host_rps", 0.5)
	v.SetDefault("fetch.per_host_burst", 1)
	v.SetDefault("fetch.user_agents", defaultUserAgents)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 20)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("classify.threshold", 0.60)
	v.SetDefault("classify.interest_threshold", 0.75)
	v.SetDefault("classify.override_confidence", 0.99)
	v.SetDefault("classify.timeout_seconds", 30)
	v.SetDefault("keyphrase.max_phrases", 5)
	v.SetDefault("keyphrase.max_ngram", 4)
	v.SetDefault("keyphrase.containment_ratio", 0.75)
	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.queue_depth", 16)
	v.SetDefault("database.lecturer_table", "lecturers")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.local.base_dir", "data/pages")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.batch.max_events", 256)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("reports.dir", "data/reports")
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 8 {
		return fmt.Errorf("pipeline.workers must be between 1 and 8")
	}
	if c.Pipeline.QueueDepth <= 0 {
		return fmt.Errorf("pipeline.queue_depth must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if len(c.Fetch.UserAgents) == 0 {
		return fmt.Errorf("fetch.user_agents must list at least one agent")
	}
	if c.Directory.MaxIndexPages < 1 {
		return fmt.Errorf("directory.max_index_pages must be >= 1")
	}
	if c.Scholar.PageSize < 1 || c.Scholar.MaxPages < 1 {
		return fmt.Errorf("scholar.page_size and scholar.max_pages must be >= 1")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"classify.threshold", c.Classify.Threshold},
		{"classify.interest_threshold", c.Classify.InterestThreshold},
		{"classify.override_confidence", c.Classify.OverrideConfidence},
	} {
		if th.value < 0 || th.value > 1 {
			return fmt.Errorf("%s must be within [0, 1]", th.name)
		}
	}
	if c.Keyphrase.ContainmentRatio <= 0 || c.Keyphrase.ContainmentRatio > 1 {
		return fmt.Errorf("keyphrase.containment_ratio must be within (0, 1]")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be gcs, local or memory")
	}
	return nil
}

// FetchTimeout returns the per-request fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Development reports whether the service runs in development mode.
func (c Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}
