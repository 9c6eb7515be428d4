package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	HTTP        HTTPConfig      `toml:"http"`
	Browser     BrowserConfig   `toml:"browser"`
	Breaker     BreakerConfig   `toml:"breaker"`
	Compliance  ComplianceCfg   `toml:"compliance"`
	Ingest      IngestConfig    `toml:"ingest"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Embeddings  EmbeddingConfig `toml:"embeddings"`
	Providers   ProviderConfig  `toml:"providers"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for log lines (default: "15:04:05")
}

// HTTPConfig contains outbound fetch behavior shared by providers and scrapers
type HTTPConfig struct {
	Timeout        time.Duration `toml:"timeout"`          // Request timeout for listing/API calls
	DetailTimeout  time.Duration `toml:"detail_timeout"`   // Timeout for heavy detail payloads
	MaxRetries     int           `toml:"max_retries"`      // Retries on 429/5xx and transport errors
	BackoffFactor  time.Duration `toml:"backoff_factor"`   // Initial backoff interval
	MaxRetryDelay  time.Duration `toml:"max_retry_delay"`  // Backoff ceiling
	UserAgent      string        `toml:"user_agent"`       // User agent for API providers
	BrowserUA      string        `toml:"browser_ua"`       // Browser-like user agent for scrapers
	AcceptLanguage string        `toml:"accept_language"`  // Accept-Language for scraper requests
	URLCheckBatch  int           `toml:"url_check_batch"`  // Jobs per URL health sweep
	URLRecheckDays int           `toml:"url_recheck_days"` // Minimum age before a URL is re-checked
}

// BrowserConfig contains the chromedp rendered-fetch path configuration
type BrowserConfig struct {
	Enabled  bool          `toml:"enabled"`   // Allow browser-rendered sources
	Timeout  time.Duration `toml:"timeout"`   // Per-page render timeout
	WaitTime time.Duration `toml:"wait_time"` // Settle time after navigation for JS rendering
	PoolSize int           `toml:"pool_size"` // Concurrent browser tabs
}

// BreakerConfig contains per-source circuit breaker thresholds
type BreakerConfig struct {
	FailureThreshold int           `toml:"failure_threshold"` // Consecutive failures before the circuit opens
	RecoveryTimeout  time.Duration `toml:"recovery_timeout"`  // Time in OPEN before a half-open probe is allowed
}

// ComplianceCfg contains the scraping kill-switch settings
type ComplianceCfg struct {
	BlockThreshold   int     `toml:"block_threshold"`    // Consecutive blocks before auto-disable
	DefaultRateLimit float64 `toml:"default_rate_limit"` // Seconds between requests for new sources
}

// IngestConfig drives the fetch orchestrator
type IngestConfig struct {
	FetchConcurrency int           `toml:"fetch_concurrency"` // Parallel adapter fetches per run
	DefaultQuery     string        `toml:"default_query"`     // Search term passed to adapters
	DefaultLocation  string        `toml:"default_location"`  // Location passed to adapters
	SoftTimeLimit    time.Duration `toml:"soft_time_limit"`   // Warn when a run exceeds this
	HardTimeLimit    time.Duration `toml:"hard_time_limit"`   // Cancel the run at this point
	EmbedBatchSize   int           `toml:"embed_batch_size"`  // Jobs per embedding back-fill batch
	SweepBatchSize   int           `toml:"sweep_batch_size"`  // Jobs per semantic dedup sweep
}

// SchedulerConfig contains the cron trigger table settings
type SchedulerConfig struct {
	Enabled               bool   `toml:"enabled"`
	Timezone              string `toml:"timezone"`                // IANA name, jobs fire in this zone
	FetchIntervalMinutes  int    `toml:"fetch_interval_minutes"`  // API provider cadence
	ScraperIntervalHours  int    `toml:"scraper_interval_hours"`  // HTML scraper cadence
	SearchIntervalMinutes int    `toml:"search_interval_minutes"` // Saved-search dispatch cadence
}

// EmbeddingConfig contains the Gemini embedding settings
type EmbeddingConfig struct {
	APIKey    string        `toml:"api_key"`   // Google API key (COLLIGO_GEMINI_API_KEY)
	Model     string        `toml:"model"`     // Embedding model (default: "text-embedding-004")
	Dimension int           `toml:"dimension"` // Output dimensionality
	BatchSize int           `toml:"batch_size"`
	Timeout   time.Duration `toml:"timeout"`
}

// ProviderConfig carries credentials for key-gated providers.
// An empty credential silently disables the provider at startup.
type ProviderConfig struct {
	AdzunaAppID  string `toml:"adzuna_app_id"`
	AdzunaAppKey string `toml:"adzuna_app_key"`
	JoobleAPIKey string `toml:"jooble_api_key"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings belong in colligo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		HTTP: HTTPConfig{
			Timeout:        15 * time.Second,
			DetailTimeout:  30 * time.Second,
			MaxRetries:     3,
			BackoffFactor:  1 * time.Second,
			MaxRetryDelay:  30 * time.Second,
			UserAgent:      "Colligo/1.0 (+https://github.com/ternarybob/colligo)",
			BrowserUA:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "de-CH,de;q=0.9,fr;q=0.8,en;q=0.7",
			URLCheckBatch:  200,
			URLRecheckDays: 7,
		},
		Browser: BrowserConfig{
			Enabled:  true,
			Timeout:  30 * time.Second,
			WaitTime: 3 * time.Second,
			PoolSize: 2,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
		},
		Compliance: ComplianceCfg{
			BlockThreshold:   3,
			DefaultRateLimit: 2.0,
		},
		Ingest: IngestConfig{
			FetchConcurrency: 5,
			DefaultQuery:     "software engineer",
			DefaultLocation:  "Switzerland",
			SoftTimeLimit:    540 * time.Second,
			HardTimeLimit:    600 * time.Second,
			EmbedBatchSize:   100,
			SweepBatchSize:   200,
		},
		Scheduler: SchedulerConfig{
			Enabled:               true,
			Timezone:              "Europe/Zurich",
			FetchIntervalMinutes:  30,
			ScraperIntervalHours:  6,
			SearchIntervalMinutes: 60,
		},
		Embeddings: EmbeddingConfig{
			Model:     "text-embedding-004",
			Dimension: 384,
			BatchSize: 100,
			Timeout:   2 * time.Minute,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment (highest priority: COLLIGO_ENV, fallback: GO_ENV)
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("COLLIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if badgerPath := os.Getenv("COLLIGO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging
	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("COLLIGO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("COLLIGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// HTTP
	if timeout := os.Getenv("COLLIGO_HTTP_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			config.HTTP.Timeout = t
		}
	}
	if maxRetries := os.Getenv("COLLIGO_HTTP_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.HTTP.MaxRetries = mr
		}
	}
	if userAgent := os.Getenv("COLLIGO_HTTP_USER_AGENT"); userAgent != "" {
		config.HTTP.UserAgent = userAgent
	}

	// Browser
	if enabled := os.Getenv("COLLIGO_BROWSER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Browser.Enabled = e
		}
	}
	if timeout := os.Getenv("COLLIGO_BROWSER_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			config.Browser.Timeout = t
		}
	}

	// Breaker
	if threshold := os.Getenv("COLLIGO_BREAKER_FAILURE_THRESHOLD"); threshold != "" {
		if ft, err := strconv.Atoi(threshold); err == nil {
			config.Breaker.FailureThreshold = ft
		}
	}
	if recovery := os.Getenv("COLLIGO_BREAKER_RECOVERY_TIMEOUT"); recovery != "" {
		if rt, err := time.ParseDuration(recovery); err == nil {
			config.Breaker.RecoveryTimeout = rt
		}
	}

	// Compliance
	if threshold := os.Getenv("COLLIGO_COMPLIANCE_BLOCK_THRESHOLD"); threshold != "" {
		if bt, err := strconv.Atoi(threshold); err == nil {
			config.Compliance.BlockThreshold = bt
		}
	}

	// Ingest
	if concurrency := os.Getenv("COLLIGO_FETCH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Ingest.FetchConcurrency = c
		}
	}
	if query := os.Getenv("COLLIGO_DEFAULT_QUERY"); query != "" {
		config.Ingest.DefaultQuery = query
	}
	if location := os.Getenv("COLLIGO_DEFAULT_LOCATION"); location != "" {
		config.Ingest.DefaultLocation = location
	}

	// Scheduler
	if enabled := os.Getenv("COLLIGO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if interval := os.Getenv("COLLIGO_FETCH_INTERVAL_MINUTES"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			config.Scheduler.FetchIntervalMinutes = i
		}
	}
	if interval := os.Getenv("COLLIGO_SCRAPER_INTERVAL_HOURS"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			config.Scheduler.ScraperIntervalHours = i
		}
	}
	if interval := os.Getenv("COLLIGO_SEARCH_INTERVAL_MINUTES"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			config.Scheduler.SearchIntervalMinutes = i
		}
	}

	// Embeddings
	if apiKey := os.Getenv("COLLIGO_GEMINI_API_KEY"); apiKey != "" {
		config.Embeddings.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Embeddings.APIKey = apiKey
	}
	if model := os.Getenv("COLLIGO_EMBEDDING_MODEL"); model != "" {
		config.Embeddings.Model = model
	}
	if batch := os.Getenv("COLLIGO_EMBEDDING_BATCH_SIZE"); batch != "" {
		if b, err := strconv.Atoi(batch); err == nil {
			config.Embeddings.BatchSize = b
		}
	}

	// Provider credentials
	if id := os.Getenv("COLLIGO_ADZUNA_APP_ID"); id != "" {
		config.Providers.AdzunaAppID = id
	}
	if key := os.Getenv("COLLIGO_ADZUNA_APP_KEY"); key != "" {
		config.Providers.AdzunaAppKey = key
	}
	if key := os.Getenv("COLLIGO_JOOBLE_API_KEY"); key != "" {
		config.Providers.JoobleAPIKey = key
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
