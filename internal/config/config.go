package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDispatchInterval    = time.Minute
	defaultNotifyTimeout       = 15 * time.Second
	defaultDispatchConcurrency = 8
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port                 string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	OpenAIAPIKey         string
	DatabaseURL          string
	SQLitePath           string
	LocalTimezone        *time.Location
	LogLevel             string

	DispatchInterval    time.Duration
	NotifyTimeout       time.Duration
	DispatchConcurrency int
	RetryMaxAttempts    int
	RetryBackoff        time.Duration
}

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Local")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", timezoneName, err)
		location = time.Local
	}

	return &Config{
		Port:                 getenvDefault("PORT", "8080"),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SQLitePath:           getenvDefault("SQLITE_PATH", "reminders.db"),
		LocalTimezone:        location,
		LogLevel:             getenvDefault("LOG_LEVEL", "info"),

		DispatchInterval:    ParseDurationEnv("DISPATCH_INTERVAL", defaultDispatchInterval),
		NotifyTimeout:       ParseDurationEnv("NOTIFY_TIMEOUT", defaultNotifyTimeout),
		DispatchConcurrency: ParseIntEnv("DISPATCH_CONCURRENCY", defaultDispatchConcurrency),
		RetryMaxAttempts:    ParseIntEnv("RETRY_MAX_ATTEMPTS", 0),
		RetryBackoff:        ParseDurationEnv("RETRY_BACKOFF", 0),
	}
}

// Validate reports configuration that must stop the process at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required"))
	}
	if c.TwilioWhatsAppNumber == "" {
		errs = append(errs, errors.New("TWILIO_WHATSAPP_NUMBER is required"))
	}
	if c.DispatchInterval <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_INTERVAL must be positive, got %s", c.DispatchInterval))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.NotifyTimeout))
	}
	if c.DispatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1, got %d", c.DispatchConcurrency))
	}
	if c.RetryMaxAttempts < 0 || c.RetryBackoff < 0 {
		errs = append(errs, errors.New("retry policy values must not be negative"))
	}
	return errors.Join(errs...)
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseDurationEnv returns the duration value for an environment variable or the provided default.
func ParseDurationEnv(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as duration: %v", key, value, err)
		return def
	}
	return parsed
}
