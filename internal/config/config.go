package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB      DBConfig
	Storage StorageConfig
	MinIO   MinIOConfig
	S3      S3Config
	JWT     JWTConfig
	Server  ServerConfig
	OpenAI  OpenAIConfig
	Upload  UploadConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// StorageConfig selects the object-store backend ("minio" or "s3").
type StorageConfig struct {
	Backend string
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type ServerConfig struct {
	Port string
}

type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// UploadConfig resolves behavior the handlers must not decide on their
// own: whether registration fails when the optional cover image cannot
// be uploaded.
type UploadConfig struct {
	CoverImageRequired bool
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "sketchcode"),
			Password: getEnv("DB_PASSWORD", "sketchcode_secret"),
			Name:     getEnv("DB_NAME", "sketchcode"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "minio"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "sketchcode"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "sketchcode_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "sketchcode"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Endpoint:       getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
			PublicEndpoint: getEnv("S3_PUBLIC_ENDPOINT", ""),
			Region:         getEnv("S3_REGION", "us-east-1"),
			AccessKey:      getEnv("S3_ACCESS_KEY", ""),
			SecretKey:      getEnv("S3_SECRET_KEY", ""),
			Bucket:         getEnv("S3_BUCKET", "sketchcode"),
			UseSSL:         getEnvAsBool("S3_USE_SSL", true),
		},
		JWT: JWTConfig{
			AccessSecret:    getEnv("ACCESS_TOKEN_SECRET", "change-me-in-production"),
			RefreshSecret:   getEnv("REFRESH_TOKEN_SECRET", "change-me-too-in-production"),
			AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 168*time.Hour),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		OpenAI: OpenAIConfig{
			BaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			Model:     getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			MaxTokens: getEnvAsInt("OPENAI_MAX_TOKENS", 2048),
			Timeout:   getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Upload: UploadConfig{
			CoverImageRequired: getEnvAsBool("COVER_IMAGE_REQUIRED", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
