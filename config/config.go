package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/internal/storage"
	"sjsage522/pricetracker/services/notifier"
)

// Config represents the application configuration
type Config struct {
	// Database configuration
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Search configuration
	SearchAPIKey   string
	SearchCX       string
	SearchEndpoint string

	// Mail configuration
	MailHost     string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string

	// Crawl configuration
	RefreshInterval    time.Duration
	FetchTimeout       time.Duration
	MaxInflightGlobal  int
	MaxInflightPerHost int
	RatePerHost        float64
	UserAgent          string
	RespectRobots      bool
	HostBlock          time.Duration
	ShutdownDrain      time.Duration

	// Memcache configuration
	MemcacheAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int64

	// Environment
	LogLevel    string
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	mailPort, _ := strconv.Atoi(getEnv("MAIL_PORT", "587"))
	refreshHours, _ := strconv.Atoi(getEnv("REFRESH_INTERVAL_HOURS", "24"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "30"))
	maxGlobal, _ := strconv.Atoi(getEnv("MAX_INFLIGHT_GLOBAL", "16"))
	maxPerHost, _ := strconv.Atoi(getEnv("MAX_INFLIGHT_PER_HOST", "2"))
	ratePerHost, _ := strconv.ParseFloat(getEnv("RATE_PER_HOST", "2"), 64)
	respectRobots, _ := strconv.ParseBool(getEnv("RESPECT_ROBOTS", "true"))
	hostBlock, _ := strconv.Atoi(getEnv("HOST_BLOCK_SECONDS", "300"))
	drain, _ := strconv.Atoi(getEnv("SHUTDOWN_DRAIN_SECONDS", "60"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMax, _ := strconv.ParseInt(getEnv("REDIS_STREAM_MAX_LENGTH", "10000"), 10, 64)

	mailUsername := getEnv("MAIL_USERNAME", "")

	return &Config{
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:     getEnv("DB_PATH", "./data/pricetracker.db"),
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", ""),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SearchAPIKey:   getEnv("SEARCH_API_KEY", ""),
		SearchCX:       getEnv("SEARCH_CX", ""),
		SearchEndpoint: getEnv("SEARCH_ENDPOINT", "https://www.googleapis.com/customsearch/v1"),

		MailHost:     getEnv("MAIL_HOST", "smtp.gmail.com"),
		MailPort:     mailPort,
		MailUsername: mailUsername,
		MailPassword: getEnv("MAIL_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", mailUsername),

		RefreshInterval:    time.Duration(refreshHours) * time.Hour,
		FetchTimeout:       time.Duration(fetchTimeout) * time.Second,
		MaxInflightGlobal:  maxGlobal,
		MaxInflightPerHost: maxPerHost,
		RatePerHost:        ratePerHost,
		UserAgent:          getEnv("USER_AGENT", helpers.DefaultUserAgent),
		RespectRobots:      respectRobots,
		HostBlock:          time.Duration(hostBlock) * time.Second,
		ShutdownDrain:      time.Duration(drain) * time.Second,

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "price_drops"),
		RedisStreamMaxLength: streamMax,

		LogLevel:    getEnv("LOG_LEVEL", ""),
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

// Validate reports configuration the process cannot start with
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres":
		var missing []string
		if c.DBHost == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DBUser == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("postgres requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL_HOURS must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.MaxInflightGlobal <= 0 || c.MaxInflightPerHost <= 0 {
		return fmt.Errorf("MAX_INFLIGHT_GLOBAL and MAX_INFLIGHT_PER_HOST must be positive")
	}
	if c.RatePerHost < 0 {
		return fmt.Errorf("RATE_PER_HOST must not be negative")
	}
	if (c.MailUsername == "") != (c.MailPassword == "") {
		return fmt.Errorf("MAIL_USERNAME and MAIL_PASSWORD must be set together")
	}
	return nil
}

// StorageOptions returns the repository connection settings
func (c *Config) StorageOptions() storage.Options {
	opts := storage.Options{Driver: c.DBDriver, Path: c.DBPath}
	if c.DBDriver == "postgres" {
		opts.DSN = storage.PostgresDSN(c.DBHost, strconv.Itoa(c.DBPort), c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
	}
	return opts
}

// MailEnabled reports whether SMTP credentials are configured
func (c *Config) MailEnabled() bool {
	return c.MailUsername != "" && c.MailPassword != ""
}

// SMTPConfig returns the mail transport settings
func (c *Config) SMTPConfig() notifier.SMTPConfig {
	return notifier.SMTPConfig{
		Host:     c.MailHost,
		Port:     c.MailPort,
		Username: c.MailUsername,
		Password: c.MailPassword,
		From:     c.MailFrom,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
