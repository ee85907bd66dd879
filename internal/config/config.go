package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/clause-review/internal/domain/ai"
	"github.com/bryanwahyu/clause-review/internal/logger"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMinio    = "minio"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  logger.Config  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
	AI       AIConfig       `yaml:"ai"`
	Store    StoreConfig    `yaml:"store"`
	Extract  ExtractConfig  `yaml:"extract"`
}

type ServerConfig struct {
	Port         int               `yaml:"port"`
	ReadTimeout  time.Duration     `yaml:"read_timeout"`
	WriteTimeout time.Duration     `yaml:"write_timeout"`
	CORSOrigins  []string          `yaml:"cors_origins"`
	APIKeys      map[string]string `yaml:"api_keys"` // client name -> key
	RateLimit    RateLimitConfig   `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Capacity        int `yaml:"capacity"`
	RefillPerSecond int `yaml:"refill_per_second"`
}

type AnalysisConfig struct {
	Profile         string        `yaml:"profile"`      // generic | rental
	LexiconFile     string        `yaml:"lexicon_file"` // overrides Profile
	MaxInFlight     int           `yaml:"max_in_flight"`
	StatusRetention time.Duration `yaml:"status_retention"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseBackoff     time.Duration `yaml:"base_backoff"`
	AutoSave        bool          `yaml:"auto_save"`
}

type AIConfig struct {
	Timeout     time.Duration   `yaml:"timeout"`
	MaxTokens   int             `yaml:"max_tokens"`
	Temperature float32         `yaml:"temperature"`
	Credentials []ai.Credential `yaml:"credentials"`
}

type StoreConfig struct {
	Backend    string         `yaml:"backend"`
	MaxRecords int            `yaml:"max_records"` // memory backend only
	MySQL      DatabaseConfig `yaml:"mysql"`
	Postgres   struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Minio MinioConfig `yaml:"minio"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ExtractConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxPDFPages    int   `yaml:"max_pdf_pages"`
}

// Load baca .env lalu config.yaml. A missing config file is not an error;
// defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	// Load .env first (ignore error if not present)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("no config file found, using defaults", "path", path)
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if key := getenv("CLAUSE_AI_API_KEY"); key != "" {
		c.AI.Credentials = append(c.AI.Credentials, ai.Credential{
			Name:    "env-primary",
			APIKey:  key,
			BaseURL: getenv("CLAUSE_AI_BASE_URL"),
			Model:   getenv("CLAUSE_AI_MODEL"),
		})
	}
	if key := getenv("CLAUSE_AI_FALLBACK_API_KEY"); key != "" {
		c.AI.Credentials = append(c.AI.Credentials, ai.Credential{
			Name:    "env-fallback",
			APIKey:  key,
			BaseURL: getenv("CLAUSE_AI_BASE_URL"),
			Model:   getenv("CLAUSE_AI_MODEL"),
		})
	}
	if v := getenv("CLAUSE_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("CLAUSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// covers three AI attempts plus backoff on the sync path
		c.Server.WriteTimeout = 120 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 60
	}
	if c.Server.RateLimit.RefillPerSecond == 0 {
		c.Server.RateLimit.RefillPerSecond = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Analysis.Profile == "" {
		c.Analysis.Profile = "generic"
	}
	if c.Analysis.MaxInFlight == 0 {
		c.Analysis.MaxInFlight = 10
	}
	if c.Analysis.StatusRetention == 0 {
		c.Analysis.StatusRetention = time.Hour
	}
	if c.Analysis.MaxAttempts == 0 {
		c.Analysis.MaxAttempts = 3
	}
	if c.Analysis.BaseBackoff == 0 {
		c.Analysis.BaseBackoff = time.Second
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 30 * time.Second
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 500
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.2
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.MaxRecords == 0 {
		c.Store.MaxRecords = 1000
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "clause-review.db"
	}
	if c.Store.Minio.Bucket == "" {
		c.Store.Minio.Bucket = "clause-review"
	}
	if c.Extract.MaxUploadBytes == 0 {
		c.Extract.MaxUploadBytes = 10 << 20
	}
	if c.Extract.MaxPDFPages == 0 {
		c.Extract.MaxPDFPages = 50
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendMySQL, BackendPostgres, BackendSQLite, BackendMinio:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Analysis.MaxInFlight < 0 || c.Analysis.MaxAttempts < 0 {
		return fmt.Errorf("analysis limits must not be negative")
	}
	if c.Store.Backend == BackendPostgres && strings.TrimSpace(c.Store.Postgres.DSN) == "" {
		return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
	}
	if c.Store.Backend == BackendMinio && c.Store.Minio.Endpoint == "" {
		return fmt.Errorf("store.minio.endpoint is required for the minio backend")
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	db := c.Store.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
	)
}
