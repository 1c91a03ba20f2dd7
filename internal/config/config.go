// Package config provides configuration for the answer service.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ModeMock runs every backend in-process.
	ModeMock = "MOCK"

	EmbeddingProviderOpenAI  = "openai"
	EmbeddingProviderBedrock = "bedrock"

	VectorIndexMemory = "memory"
	VectorIndexQdrant = "qdrant"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int    `yaml:"http_port"`
	Mode     string `yaml:"mode"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Text generation
	LLMBaseURL string        `yaml:"llm_base_url"`
	LLMAPIKey  string        `yaml:"-"`
	LLMModel   string        `yaml:"llm_model"`
	LLMTimeout time.Duration `yaml:"llm_timeout"`

	// Embeddings
	EmbeddingProvider      string        `yaml:"embedding_provider"`
	EmbeddingBaseURL       string        `yaml:"embedding_base_url"`
	EmbeddingModel         string        `yaml:"embedding_model"`
	EmbeddingTimeout       time.Duration `yaml:"embedding_timeout"`
	EmbeddingMaxInputRunes int           `yaml:"embedding_max_input_runes"`
	EmbeddingCacheSize     int           `yaml:"embedding_cache_size"`

	// Vector index
	VectorIndex      string        `yaml:"vector_index"`
	QdrantURL        string        `yaml:"qdrant_url"`
	QdrantAPIKey     string        `yaml:"-"`
	QdrantCollection string        `yaml:"qdrant_collection"`
	QdrantTimeout    time.Duration `yaml:"qdrant_timeout"`
	RetrievalTopK    int           `yaml:"retrieval_top_k"`

	// Image synthesis
	ImageBaseURL         string        `yaml:"image_base_url"`
	ImageModel           string        `yaml:"image_model"`
	ImageTimeout         time.Duration `yaml:"image_timeout"`
	ImageBreakerFailures int           `yaml:"image_breaker_failures"`
	ImageBreakerCooldown time.Duration `yaml:"image_breaker_cooldown"`

	// Artifact storage
	AWSRegion        string        `yaml:"aws_region"`
	S3Bucket         string        `yaml:"s3_bucket"`
	S3Endpoint       string        `yaml:"s3_endpoint"`
	S3ForcePathStyle bool          `yaml:"s3_force_path_style"`
	S3PublicBaseURL  string        `yaml:"s3_public_base_url"`
	UploadTimeout    time.Duration `yaml:"upload_timeout"`

	// Edge
	JWTSecret       string  `yaml:"-"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	PolicyFile      string  `yaml:"policy_file"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load loads configuration from .env, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: failed to read .env: %v", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPPort:               8080,
		DatabaseURL:            "file:tolkien.db?cache=shared&mode=rwc",
		LLMBaseURL:             "https://api.openai.com",
		LLMModel:               "gpt-3.5-turbo",
		LLMTimeout:             60 * time.Second,
		EmbeddingProvider:      EmbeddingProviderOpenAI,
		EmbeddingBaseURL:       "https://api.openai.com/v1",
		EmbeddingModel:         "text-embedding-3-small",
		EmbeddingTimeout:       30 * time.Second,
		EmbeddingMaxInputRunes: 2048,
		EmbeddingCacheSize:     1024,
		VectorIndex:            VectorIndexQdrant,
		QdrantURL:              "http://localhost:6333",
		QdrantCollection:       "lotr_data",
		QdrantTimeout:          15 * time.Second,
		RetrievalTopK:          5,
		ImageBaseURL:           "https://api.openai.com/v1",
		ImageModel:             "dall-e-3",
		ImageTimeout:           120 * time.Second,
		ImageBreakerFailures:   3,
		ImageBreakerCooldown:   60 * time.Second,
		AWSRegion:              "us-east-1",
		S3Bucket:               "generatedimages1923",
		UploadTimeout:          30 * time.Second,
		RateLimitPerSec:        2,
		RateLimitBurst:         5,
		LogLevel:               "info",
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.Mode = getEnv("LORE_MODE", cfg.Mode)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getEnv("OPENAI_API_KEY", cfg.LLMAPIKey)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LLMTimeout = getEnvMillis("LLM_TIMEOUT_MS", cfg.LLMTimeout)

	cfg.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", cfg.EmbeddingBaseURL)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingTimeout = getEnvMillis("EMBEDDING_TIMEOUT_MS", cfg.EmbeddingTimeout)
	cfg.EmbeddingMaxInputRunes = getEnvInt("EMBEDDING_MAX_INPUT_RUNES", cfg.EmbeddingMaxInputRunes)
	cfg.EmbeddingCacheSize = getEnvInt("EMBEDDING_CACHE_SIZE", cfg.EmbeddingCacheSize)

	cfg.VectorIndex = getEnv("VECTOR_INDEX", cfg.VectorIndex)
	cfg.QdrantURL = getEnv("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantAPIKey = getEnv("QDRANT_API_KEY", cfg.QdrantAPIKey)
	cfg.QdrantCollection = getEnv("QDRANT_COLLECTION", cfg.QdrantCollection)
	cfg.QdrantTimeout = getEnvMillis("QDRANT_TIMEOUT_MS", cfg.QdrantTimeout)
	cfg.RetrievalTopK = getEnvInt("RETRIEVAL_TOP_K", cfg.RetrievalTopK)

	cfg.ImageBaseURL = getEnv("IMAGE_BASE_URL", cfg.ImageBaseURL)
	cfg.ImageModel = getEnv("IMAGE_MODEL", cfg.ImageModel)
	cfg.ImageTimeout = getEnvMillis("IMAGE_TIMEOUT_MS", cfg.ImageTimeout)
	cfg.ImageBreakerFailures = getEnvInt("IMAGE_BREAKER_FAILURES", cfg.ImageBreakerFailures)
	cfg.ImageBreakerCooldown = getEnvMillis("IMAGE_BREAKER_COOLDOWN_MS", cfg.ImageBreakerCooldown)

	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3ForcePathStyle = getEnvBool("S3_FORCE_PATH_STYLE", cfg.S3ForcePathStyle)
	cfg.S3PublicBaseURL = getEnv("S3_PUBLIC_BASE_URL", cfg.S3PublicBaseURL)
	cfg.UploadTimeout = getEnvMillis("UPLOAD_TIMEOUT_MS", cfg.UploadTimeout)

	cfg.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.JWTSecret)
	cfg.RateLimitPerSec = getEnvFloat("RATE_LIMIT_PER_SEC", cfg.RateLimitPerSec)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.PolicyFile = getEnv("POLICY_FILE", cfg.PolicyFile)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

// IsMock reports whether every backend should run in-process.
func (c *Config) IsMock() bool {
	return c.Mode == ModeMock
}

// Validate checks settings that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.RetrievalTopK < 1 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be >= 1, got %d", c.RetrievalTopK)
	}
	for name, d := range map[string]time.Duration{
		"LLM_TIMEOUT_MS":       c.LLMTimeout,
		"EMBEDDING_TIMEOUT_MS": c.EmbeddingTimeout,
		"QDRANT_TIMEOUT_MS":    c.QdrantTimeout,
		"IMAGE_TIMEOUT_MS":     c.ImageTimeout,
		"UPLOAD_TIMEOUT_MS":    c.UploadTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	switch c.EmbeddingProvider {
	case EmbeddingProviderOpenAI, EmbeddingProviderBedrock:
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	switch c.VectorIndex {
	case VectorIndexMemory, VectorIndexQdrant:
	default:
		return fmt.Errorf("unknown VECTOR_INDEX %q", c.VectorIndex)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillis(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return time.Duration(intVal) * time.Millisecond
		}
	}
	return defaultVal
}
