package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultLedgerDSN keeps the reload ledger in a process-local in-memory
// database.
const DefaultLedgerDSN = "file:aadhaar-ledger?mode=memory&cache=shared"

type Config struct {
	// Input
	DataDir string

	// HTTP Server
	Port        string
	CORSOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Reload ledger
	LedgerDSN       string
	LedgerRetention int

	// AMQP (disabled when the URL is empty)
	AMQPURL         string
	AMQPExchange    string
	AMQPReloadQueue string

	// Input watcher
	WatchInput    bool
	WatchDebounce time.Duration

	// Tracing (disabled when the endpoint is empty)
	OTelEndpoint string

	ShutdownTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		DataDir: getEnv("DATA_DIR", "./uidai_data"),

		Port:        getEnv("PORT", "8001"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		LedgerDSN:       getEnv("LEDGER_DSN", DefaultLedgerDSN),
		LedgerRetention: getEnvInt("LEDGER_RETENTION", 100),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "aadhaar"),
		AMQPReloadQueue: getEnv("AMQP_RELOAD_QUEUE", "aadhaar.reload"),

		WatchInput:    getEnvBool("WATCH_INPUT", false),
		WatchDebounce: getEnvDuration("WATCH_DEBOUNCE", 2*time.Second),

		OTelEndpoint: getEnv("OTEL_ENDPOINT", ""),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, "data directory cannot be empty")
	}

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(c.CORSOrigins) == 0 {
		errors = append(errors, "CORS origins cannot be empty: use '*' to allow any origin")
	}

	// Validate logging
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Validate ledger
	if c.LedgerDSN == "" {
		errors = append(errors, "ledger DSN cannot be empty")
	}
	if c.LedgerRetention < 1 {
		errors = append(errors, fmt.Sprintf("invalid ledger retention %d: must be at least 1", c.LedgerRetention))
	} else if c.LedgerRetention > 10000 {
		errors = append(errors, fmt.Sprintf("invalid ledger retention %d: must be at most 10000", c.LedgerRetention))
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
		if c.AMQPReloadQueue == "" {
			errors = append(errors, "AMQP reload queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate watcher
	if c.WatchInput {
		if c.WatchDebounce < 100*time.Millisecond {
			errors = append(errors, fmt.Sprintf("invalid watch debounce %v: must be at least 100ms", c.WatchDebounce))
		} else if c.WatchDebounce > time.Minute {
			errors = append(errors, fmt.Sprintf("invalid watch debounce %v: must be at most 1 minute", c.WatchDebounce))
		}
	}

	// Validate tracing endpoint if provided
	if c.OTelEndpoint != "" {
		if parsedURL, err := url.Parse(c.OTelEndpoint); err != nil {
			errors = append(errors, fmt.Sprintf("invalid OTel endpoint '%s': %v", c.OTelEndpoint, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid OTel endpoint scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
