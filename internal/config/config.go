// Package config provides unified configuration loading for the hyperlinking engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the hyperlinking engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	OCR           OCRConfig           `yaml:"ocr"`
	Detection     DetectionConfig     `yaml:"detection"`
	Linking       LinkingConfig       `yaml:"linking"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds OCR page-text cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// OCRConfig holds OCR engine invocation settings.
type OCRConfig struct {
	ExtractorPath string        `yaml:"extractor_path"`
	PageTimeout   time.Duration `yaml:"page_timeout"`
	MinWordConf   float64       `yaml:"min_word_conf"`
}

// DetectionConfig holds reference/index detection settings.
//
// The header/footer band fraction and signature exclusion radius are
// empirically tuned against the observed family-law document set and are
// not verified against a broader corpus.
type DetectionConfig struct {
	HeaderFooterBand  float64 `yaml:"header_footer_band"`  // fraction of lines stripped top and bottom
	SignatureRadius   int     `yaml:"signature_radius"`    // runes around jurat terms to exclude
	IndexScanPages    int     `yaml:"index_scan_pages"`    // pages searched for an INDEX heading
	IndexContinuation int     `yaml:"index_continuation"`  // max continuation pages after the index page
	SnippetRadius     int     `yaml:"snippet_radius"`      // context captured around each match

	// IndexTemplates maps a source filename to its canonical index labels.
	// A registered profile rebuilds OCR-corrupted index numbering and serves
	// as the last-resort item list when parsing finds nothing.
	IndexTemplates map[string][]string `yaml:"index_templates"`
}

// LinkingConfig holds deterministic linker settings.
type LinkingConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	Seed          int64   `yaml:"seed"`
	FuzzyAffidavit bool   `yaml:"fuzzy_affidavit"`
	OracleEnabled  bool   `yaml:"oracle_enabled"`
}

// PipelineConfig holds document processing settings.
type PipelineConfig struct {
	MaxConcurrentBatches int           `yaml:"max_concurrent_batches"`
	BatchSize            int           `yaml:"batch_size"`
	PersistRetries       int           `yaml:"persist_retries"`
	PersistBackoff       time.Duration `yaml:"persist_backoff"`
	EmergencyDir         string        `yaml:"emergency_dir"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/hyperlink-engine.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 20000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		OCR: OCRConfig{
			ExtractorPath: "scripts/page-ocr",
			PageTimeout:   45 * time.Second,
			MinWordConf:   0.60,
		},
		Detection: DetectionConfig{
			HeaderFooterBand:  0.08,
			SignatureRadius:   200,
			IndexScanPages:    15,
			IndexContinuation: 5,
			SnippetRadius:     60,
		},
		Linking: LinkingConfig{
			MinConfidence:  0.92,
			Seed:           42,
			FuzzyAffidavit: true,
			OracleEnabled:  false,
		},
		Pipeline: PipelineConfig{
			MaxConcurrentBatches: 2,
			BatchSize:            25,
			PersistRetries:       3,
			PersistBackoff:       500 * time.Millisecond,
			EmergencyDir:         "/tmp/hyperlink-engine/emergency",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Linking.MinConfidence < 0 || c.Linking.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %f", c.Linking.MinConfidence)
	}

	if c.Detection.HeaderFooterBand < 0 || c.Detection.HeaderFooterBand >= 0.5 {
		return fmt.Errorf("header_footer_band must be in [0,0.5), got %f", c.Detection.HeaderFooterBand)
	}

	if c.Detection.SignatureRadius < 0 {
		return fmt.Errorf("signature_radius must be non-negative, got %d", c.Detection.SignatureRadius)
	}

	if c.OCR.MinWordConf < 0 || c.OCR.MinWordConf > 1 {
		return fmt.Errorf("min_word_conf must be in [0,1], got %f", c.OCR.MinWordConf)
	}

	if c.Pipeline.MaxConcurrentBatches < 1 {
		return fmt.Errorf("max_concurrent_batches must be at least 1")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("OCR_EXTRACTOR_PATH"); v != "" {
		cfg.OCR.ExtractorPath = v
	}

	if v := os.Getenv("LINK_MIN_CONFIDENCE"); v != "" {
		var conf float64
		if _, err := fmt.Sscanf(v, "%f", &conf); err == nil {
			cfg.Linking.MinConfidence = conf
		}
	}

	if v := os.Getenv("LINK_SEED"); v != "" {
		var seed int64
		if _, err := fmt.Sscanf(v, "%d", &seed); err == nil {
			cfg.Linking.Seed = seed
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
