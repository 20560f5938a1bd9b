// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/MagnunAVF/shortlink-service/internal/logger"
	"github.com/MagnunAVF/shortlink-service/internal/shortlink"
)

const (
	DefaultPort            = ":3000"
	DefaultValidityMinutes = 30
	DefaultClickQueue      = "click_events"
)

// LoadEnvFile loads path into the environment without overriding variables
// that are already set.
func LoadEnvFile(path string) error {
	return godotenv.Load(path)
}

func Logging() logger.Config {
	return logger.Config{
		Level:   getenvDefault("LOG_LEVEL", "info"),
		Format:  getenvDefault("LOG_FORMAT", "json"),
		Service: getenvDefault("LOG_SERVICE", os.Getenv("SERVICE_NAME")),
		Env:     getenvDefault("LOG_ENV", getenvDefault("ENV", os.Getenv("APP_ENV"))),
		Version: os.Getenv("VERSION"),
		Output:  getenvDefault("LOG_OUTPUT", "stdout"),
	}
}

type API struct {
	Port            string
	ServiceName     string
	DefaultValidity int
	ShortcodeLength int
	MaxAttempts     int
	RecentClicks    int
	ClickLocation   string
	RabbitMQURL     string
	ClickQueue      string
	PublishTimeout  time.Duration
}

func LoadAPI() API {
	return API{
		Port:            getenvDefault("API_SERVICE_PORT", DefaultPort),
		ServiceName:     getenvDefault("SERVICE_NAME", "URL Shortener Microservice"),
		DefaultValidity: getenvPositive("DEFAULT_VALIDITY_MINUTES", DefaultValidityMinutes),
		ShortcodeLength: getenvPositive("SHORTCODE_LENGTH", shortlink.DefaultShortcodeLength),
		MaxAttempts:     getenvPositive("SHORTCODE_MAX_ATTEMPTS", shortlink.DefaultMaxAttempts),
		RecentClicks:    getenvPositive("RECENT_CLICKS_LIMIT", shortlink.DefaultRecentClicks),
		ClickLocation:   getenvDefault("CLICK_LOCATION", shortlink.DefaultLocation),
		RabbitMQURL:     os.Getenv("RABBITMQ_URL"),
		ClickQueue:      getenvDefault("CLICK_QUEUE_NAME", DefaultClickQueue),
		PublishTimeout:  getenvDuration("CLICK_PUBLISH_TIMEOUT", 5*time.Second),
	}
}

// StoreOptions translates the settings the store cares about.
func (c API) StoreOptions() []shortlink.Option {
	return []shortlink.Option{
		shortlink.WithShortcodeLength(c.ShortcodeLength),
		shortlink.WithMaxAttempts(c.MaxAttempts),
		shortlink.WithRecentLimit(c.RecentClicks),
		shortlink.WithLocation(shortlink.FixedLocation(c.ClickLocation)),
	}
}

type Worker struct {
	DBURL         string
	GormLogLevel  string
	RabbitMQURL   string
	ClickQueue    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BatchSize     int
	FlushInterval time.Duration
}

func LoadWorker() Worker {
	return Worker{
		DBURL:         os.Getenv("DB_URL"),
		GormLogLevel:  getenvDefault("GORM_LOG_LEVEL", "warn"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		ClickQueue:    getenvDefault("CLICK_QUEUE_NAME", DefaultClickQueue),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),
		BatchSize:     getenvPositive("BATCH_SIZE", 100),
		FlushInterval: getenvDuration("FLUSH_INTERVAL", 2*time.Second),
	}
}
