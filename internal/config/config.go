package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"topearner/internal/log"
)

// Task backends
const (
	BackendHTTP = "http"
	BackendFile = "file"
)

const defaultTaskAPIURL = "https://interview.adpeai.com/api/v2"

type Config struct {
	// Task API
	TaskBackend    string
	TaskAPIURL     string
	TaskFile       string
	HTTPTimeout    time.Duration
	HTTPMaxRetries int

	// Scheduling: zero runs once and exits
	RunInterval time.Duration

	// Logging
	LogLevel string

	// AMQP run events (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	return &Config{
		TaskBackend:    getEnv("TASK_BACKEND", BackendHTTP),
		TaskAPIURL:     getEnv("TASK_API_URL", defaultTaskAPIURL),
		TaskFile:       getEnv("TASK_FILE", "./data/task.json"),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
		HTTPMaxRetries: getEnvInt("HTTP_MAX_RETRIES", 3),

		RunInterval: getEnvDuration("RUN_INTERVAL", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "topearner"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "run_events"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	switch c.TaskBackend {
	case BackendHTTP:
		if c.TaskAPIURL == "" {
			errors = append(errors, "task API URL cannot be empty when using http backend")
		} else if parsedURL, err := url.Parse(c.TaskAPIURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid task API URL '%s': %v", c.TaskAPIURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid task API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	case BackendFile:
		if c.TaskFile == "" {
			errors = append(errors, "task file path cannot be empty when using file backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid task backend '%s': must be one of %v", c.TaskBackend, []string{BackendHTTP, BackendFile}))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	} else if c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at most 5 minutes", c.HTTPTimeout))
	}

	if c.HTTPMaxRetries < 0 || c.HTTPMaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid HTTP max retries %d: must be between 0 and 10", c.HTTPMaxRetries))
	}

	if c.RunInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid run interval %v: must not be negative", c.RunInterval))
	} else if c.RunInterval > 0 && c.RunInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid run interval %v: must be 0 or at least 1 minute", c.RunInterval))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
