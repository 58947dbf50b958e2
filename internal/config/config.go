package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// MongoDB Config
	MongoURI    string `env:"MONGO_URI"`
	MongoDBName string `env:"MONGO_DB_NAME" envDefault:"incident_reporting"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Event Channel Config
	EventStream   string `env:"EVENT_STREAM" envDefault:"incident_events"`
	EventGroup    string `env:"EVENT_GROUP" envDefault:"dashboard_fanout"`
	EventConsumer string `env:"EVENT_CONSUMER"`

	// Classifier Config
	ClassifierBaseURL string        `env:"CLASSIFIER_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	ClassifierModel   string        `env:"CLASSIFIER_MODEL" envDefault:"gemini-2.5-flash"`
	ClassifierAPIKey  string        `env:"CLASSIFIER_API_KEY"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"15s"`

	// Session Config
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Uploads Config
	UploadDir string `env:"UPLOAD_DIR" envDefault:"static/uploads"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDBName:       getEnv("MONGO_DB_NAME", "incident_reporting"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		EventStream:       getEnv("EVENT_STREAM", "incident_events"),
		EventGroup:        getEnv("EVENT_GROUP", "dashboard_fanout"),
		EventConsumer:     os.Getenv("EVENT_CONSUMER"),
		ClassifierBaseURL: getEnv("CLASSIFIER_BASE_URL", "https://generativelanguage.googleapis.com"),
		ClassifierModel:   getEnv("CLASSIFIER_MODEL", "gemini-2.5-flash"),
		ClassifierAPIKey:  os.Getenv("CLASSIFIER_API_KEY"),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 15*time.Second),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		UploadDir:         getEnv("UPLOAD_DIR", "static/uploads"),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
