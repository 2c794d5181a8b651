package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
// Every credential the service uses is an explicit field here; nothing reads
// keys from the environment after startup.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	AnalysisModel string
	ImageModel    string
	ImageSize     string
	ImageQuality  string

	// besteffort substitutes a default prompt when the analysis capability
	// returns no usable content; strict fails the run instead.
	AnalysisEmptyPolicy string

	StorageBackend string
	StoragePath    string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string

	AnalysisTimeout time.Duration
	ImageTimeout    time.Duration
	StorageTimeout  time.Duration

	MaxConcurrentRuns int
	DefaultLocale     string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnalysisModel: getEnv("ANALYSIS_MODEL", "gpt-4o"),
		ImageModel:    getEnv("IMAGE_MODEL", "dall-e-3"),
		ImageSize:     getEnv("IMAGE_SIZE", "1024x1024"),
		ImageQuality:  getEnv("IMAGE_QUALITY", "hd"),

		AnalysisEmptyPolicy: getEnv("ANALYSIS_EMPTY_POLICY", "besteffort"),

		StorageBackend: getEnv("STORAGE_BACKEND", "filesystem"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),

		AnalysisTimeout: time.Second * time.Duration(getEnvInt("ANALYSIS_TIMEOUT_SECONDS", 30)),
		ImageTimeout:    time.Second * time.Duration(getEnvInt("IMAGE_TIMEOUT_SECONDS", 60)),
		StorageTimeout:  time.Second * time.Duration(getEnvInt("STORAGE_TIMEOUT_SECONDS", 15)),

		MaxConcurrentRuns: getEnvInt("MAX_CONCURRENT_RUNS", 4),
		DefaultLocale:     getEnv("DEFAULT_LOCALE", "en"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	switch cfg.StorageBackend {
	case "filesystem":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	switch cfg.AnalysisEmptyPolicy {
	case "besteffort", "strict":
	default:
		return nil, fmt.Errorf("unsupported ANALYSIS_EMPTY_POLICY %q", cfg.AnalysisEmptyPolicy)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
