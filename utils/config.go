package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverMemory = "memory"
	StoreDriverBolt   = "bolt"
)

// Config stores all configuration of the application.
// The values are read by viper from an optional env file, environment variables take precedence.
type Config struct {
	HTTPServerAddress string        `mapstructure:"HTTP_SERVER_ADDRESS"`
	AllowedOrigins    []string      `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	StoreDriver       string        `mapstructure:"STORE_DRIVER"`
	BoltPath          string        `mapstructure:"BOLT_PATH"`
	SeedData          bool          `mapstructure:"SEED_DATA"`
	ClosingInterval   time.Duration `mapstructure:"CLOSING_INTERVAL"`
	ClosingWorkers    int           `mapstructure:"CLOSING_WORKERS"`
	BidLockTimeout    time.Duration `mapstructure:"BID_LOCK_TIMEOUT"`
	SMTPHost          string        `mapstructure:"SMTP_HOST"`
	SMTPPort          int           `mapstructure:"SMTP_PORT"`
	SMTPUsername      string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword      string        `mapstructure:"SMTP_PASSWORD"`
	EmailFrom         string        `mapstructure:"EMAIL_FROM"`
	EmailReplyTo      string        `mapstructure:"EMAIL_REPLY_TO"`
	NotifyQueueSize   int           `mapstructure:"NOTIFY_QUEUE_SIZE"`
	NotifyWorkers     int           `mapstructure:"NOTIFY_WORKERS"`
}

var configDefaults = map[string]any{
	"HTTP_SERVER_ADDRESS": "0.0.0.0:8080",
	"ALLOWED_ORIGINS":     []string{"http://localhost:3000"},
	"LOG_LEVEL":           "info",
	"STORE_DRIVER":        StoreDriverMemory,
	"BOLT_PATH":           "auctions.db",
	"SEED_DATA":           true,
	"CLOSING_INTERVAL":    "1s",
	"CLOSING_WORKERS":     8,
	"BID_LOCK_TIMEOUT":    "2s",
	"SMTP_HOST":           "",
	"SMTP_PORT":           587,
	"SMTP_USERNAME":       "",
	"SMTP_PASSWORD":       "",
	"EMAIL_FROM":          "",
	"EMAIL_REPLY_TO":      "",
	"NOTIFY_QUEUE_SIZE":   256,
	"NOTIFY_WORKERS":      2,
}

// LoadConfig reads configuration from file or environment variables.
// A missing file is not an error; every key has a default.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	for key, value := range configDefaults {
		// SetDefault also makes the key visible to AutomaticEnv during Unmarshal
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err = v.ReadInConfig(); err != nil {
				return config, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}

	err = validateConfig(config)
	return config, err
}

func validateConfig(config Config) error {
	var errs []error
	switch config.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverBolt:
		if config.BoltPath == "" {
			errs = append(errs, errors.New("BOLT_PATH is required for the bolt store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not supported", config.StoreDriver))
	}
	if config.ClosingInterval <= 0 {
		errs = append(errs, errors.New("CLOSING_INTERVAL must be positive"))
	}
	if config.BidLockTimeout <= 0 {
		errs = append(errs, errors.New("BID_LOCK_TIMEOUT must be positive"))
	}
	if config.ClosingWorkers < 1 {
		errs = append(errs, errors.New("CLOSING_WORKERS must be at least 1"))
	}
	if config.NotifyWorkers < 1 {
		errs = append(errs, errors.New("NOTIFY_WORKERS must be at least 1"))
	}
	if config.NotifyQueueSize < 1 {
		errs = append(errs, errors.New("NOTIFY_QUEUE_SIZE must be at least 1"))
	}
	if config.SMTPHost != "" && config.EmailFrom == "" {
		errs = append(errs, errors.New("EMAIL_FROM is required when SMTP_HOST is set"))
	}
	return errors.Join(errs...)
}
