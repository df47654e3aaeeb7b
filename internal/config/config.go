package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
)

// ServerConfig holds configuration shared by chatd and chatctl.
type ServerConfig struct {
	DBPath       string `env:"DOCCHAT_DB_PATH" envDefault:"/state/docchat.db"`
	StoreBackend string `env:"DOCCHAT_STORE_BACKEND" envDefault:"sqlite"`
	RedisURL     string `env:"REDIS_URL"`
	RedisPrefix  string `env:"REDIS_PREFIX" envDefault:"docchat"`

	ModelProvider    string        `env:"DOCCHAT_MODEL_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	DefaultModel     string        `env:"MODEL_ID" envDefault:"gpt-4o-mini"`
	MaxTokens        int           `env:"MODEL_MAX_TOKENS" envDefault:"1024"`
	Temperature      float64       `env:"MODEL_TEMPERATURE" envDefault:"0"`
	TopP             float64       `env:"MODEL_TOP_P" envDefault:"0.9"`
	CatalogRefresh   time.Duration `env:"CATALOG_REFRESH_INTERVAL" envDefault:"10m"`
	DummyScript      string        `env:"DUMMY_PROVIDER_SCRIPT" envDefault:"ok"`
	DummyCatalog     []string      `env:"DUMMY_CATALOG" envSeparator:"," envDefault:"dummy-model"`
	ControlMaxWall   time.Duration `env:"CONTROL_MAX_WALL_TIME" envDefault:"120s"`
	CircuitThreshold int           `env:"CIRCUIT_THRESHOLD" envDefault:"5"`
	CircuitCooldown  time.Duration `env:"CIRCUIT_COOLDOWN" envDefault:"30s"`

	DocumentSource   string `env:"DOCUMENT_SOURCE" envDefault:"dir"`
	DocumentDir      string `env:"DOCUMENT_DIR" envDefault:"/data/docs"`
	S3Bucket         string `env:"S3_BUCKET"`
	S3Prefix         string `env:"S3_PREFIX" envDefault:"docs"`
	AWSRegion        string `env:"AWS_REGION"`
	ChunkSize        int    `env:"CHUNK_SIZE" envDefault:"1000"`
	SummaryMaxChunks int    `env:"SUMMARY_MAX_CHUNKS" envDefault:"3"`

	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	HistoryWindow  int           `env:"HISTORY_WINDOW" envDefault:"0"`
	StrictCallLog  bool          `env:"STRICT_CALL_LOG" envDefault:"false"`

	Port      int    `env:"PORT" envDefault:"8080"`
	RateLimit string `env:"RATE_LIMIT" envDefault:"60-M"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadEnv loads the given dotenv files that exist and reports how many were
// read. Variables already set in the environment win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// LoadServerConfig reads .env/.env.local when present, then parses and
// validates the environment.
func LoadServerConfig() (ServerConfig, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return ServerConfig{}, fmt.Errorf("load env files: %w", err)
	}
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c ServerConfig) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case "sqlite":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required in environment when DOCCHAT_STORE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("DOCCHAT_STORE_BACKEND must be 'sqlite' or 'redis', got %q", c.StoreBackend))
	}
	switch c.ModelProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required in environment when DOCCHAT_MODEL_PROVIDER=openai"))
		}
	case "dummy":
	default:
		errs = append(errs, fmt.Errorf("DOCCHAT_MODEL_PROVIDER must be 'openai' or 'dummy', got %q", c.ModelProvider))
	}
	switch c.DocumentSource {
	case "dir":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required in environment when DOCUMENT_SOURCE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("DOCUMENT_SOURCE must be 'dir' or 's3', got %q", c.DocumentSource))
	}
	switch c.SessionBackend {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be 'memory' or 'sqlite', got %q", c.SessionBackend))
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		errs = append(errs, errors.New("MODEL_ID must not be empty"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.SummaryMaxChunks <= 0 {
		errs = append(errs, fmt.Errorf("SUMMARY_MAX_CHUNKS must be positive, got %d", c.SummaryMaxChunks))
	}
	if c.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_WINDOW must be non-negative, got %d", c.HistoryWindow))
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT %q: %w", c.RateLimit, err))
	}
	return errors.Join(errs...)
}
