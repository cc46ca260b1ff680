package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Model    ModelConfig
	Gemini   GeminiConfig
	Budget   BudgetConfig
	Corpus   CorpusConfig
	Cache    CacheConfig
	Redis    RedisConfig
	SymMap   SymMapConfig
	Postgres PostgresConfig
	Logging  LoggingConfig
}

type ModelConfig struct {
	BaseURL      string
	Name         string
	APIKey       string
	RequestDelay time.Duration
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type BudgetConfig struct {
	MaxContextTokens int
}

type CorpusConfig struct {
	ControlFile string
	TaskDir     string
	OutputDir   string
}

type CacheConfig struct {
	Backend string // file or redis
	Dir     string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SymMapConfig struct {
	Dir           string
	CoreIndexFile string
}

// PostgresConfig is optional; an empty DSN disables the database export.
type PostgresConfig struct {
	DSN string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Model: ModelConfig{
			BaseURL:      getEnv("MODEL_BASE_URL", "http://localhost:8000/v1"),
			Name:         getEnv("MODEL_NAME", "deepseek-llm-7b-chat"),
			APIKey:       getEnv("MODEL_API_KEY", "local"),
			RequestDelay: time.Duration(getEnvInt("MODEL_REQUEST_DELAY_MS", 0)) * time.Millisecond,
		},
		Gemini: GeminiConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EnableFallback: getEnvBool("GEMINI_ENABLE_FALLBACK", false),
		},
		Budget: BudgetConfig{
			MaxContextTokens: getEnvInt("MAX_CONTEXT_TOKENS", 3800),
		},
		Corpus: CorpusConfig{
			ControlFile: getEnv("CONTROL_FILE", "data/control_table.xlsx"),
			TaskDir:     getEnv("TASK_DIR", "data/sections"),
			OutputDir:   getEnv("OUTPUT_DIR", "output"),
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "file"),
			Dir:     getEnv("CACHE_DIR", "cache"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		SymMap: SymMapConfig{
			Dir:           getEnv("SYMMAP_DIR", "data/SymMap"),
			CoreIndexFile: getEnv("CORE_INDEX_FILE", "data/core_index_all.csv"),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", "logs/pipeline.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Model.BaseURL == "" {
		return fmt.Errorf("MODEL_BASE_URL is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("MODEL_NAME is required")
	}
	if c.Budget.MaxContextTokens <= 0 {
		return fmt.Errorf("MAX_CONTEXT_TOKENS must be positive")
	}
	if c.Cache.Backend != "file" && c.Cache.Backend != "redis" {
		return fmt.Errorf("CACHE_BACKEND must be file or redis, got %q", c.Cache.Backend)
	}
	if c.Gemini.EnableFallback && c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when GEMINI_ENABLE_FALLBACK is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
