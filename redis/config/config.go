// Package config holds the Redis connection settings shared by the task
// server, the enqueue client and the scheduler.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig holds connection and queue parameters for asynq.
type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	Workers         int
	RetryInterval   time.Duration
	MaxRetries      int
	RetentionPeriod time.Duration
	QueuePriorities map[string]int
}

const (
	defaultHost          = "localhost"
	defaultPort          = 6379
	defaultDB            = 0
	defaultWorkers       = 10
	defaultRetryInterval = 5 * time.Minute
	defaultMaxRetries    = 3
	defaultRetention     = 7 * 24 * time.Hour

	minPort          = 1
	maxPort          = 65535
	minDB            = 0
	maxDB            = 15
	minWorkers       = 1
	maxWorkers       = 100
	minRetryInterval = time.Second
	maxRetryInterval = time.Hour
	minMaxRetries    = 1
	maxMaxRetries    = 10
)

// DefaultQueuePriorities weights the sync queues. Manual syncs triggered
// from the wizard land on critical so they are picked ahead of the
// scheduled backlog.
var DefaultQueuePriorities = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

// NewRedisConfig builds the configuration from environment variables.
// REDIS_URL, when set, wins over the individual REDIS_* parameters.
func NewRedisConfig() (*RedisConfig, error) {
	cfg := &RedisConfig{
		Host:            getEnvOrDefault("REDIS_HOST", defaultHost),
		Password:        os.Getenv("REDIS_PASSWORD"),
		RetentionPeriod: defaultRetention,
		QueuePriorities: make(map[string]int),
	}

	for queue, priority := range DefaultQueuePriorities {
		cfg.QueuePriorities[queue] = priority
	}

	port, err := validateInt(getEnvOrDefault("REDIS_PORT", strconv.Itoa(defaultPort)), minPort, maxPort, "port")
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	db, err := validateInt(getEnvOrDefault("REDIS_DB", strconv.Itoa(defaultDB)), minDB, maxDB, "db")
	if err != nil {
		return nil, err
	}
	cfg.DB = db

	workers, err := validateInt(getEnvOrDefault("REDIS_WORKERS", strconv.Itoa(defaultWorkers)), minWorkers, maxWorkers, "workers")
	if err != nil {
		return nil, err
	}
	cfg.Workers = workers

	retries, err := validateInt(getEnvOrDefault("REDIS_MAX_RETRIES", strconv.Itoa(defaultMaxRetries)), minMaxRetries, maxMaxRetries, "max retries")
	if err != nil {
		return nil, err
	}
	cfg.MaxRetries = retries

	interval, err := validateDuration(getEnvOrDefault("REDIS_RETRY_INTERVAL", defaultRetryInterval.String()), minRetryInterval, maxRetryInterval, "retry interval")
	if err != nil {
		return nil, err
	}
	cfg.RetryInterval = interval

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if err := cfg.applyURL(redisURL); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *RedisConfig) applyURL(redisURL string) error {
	parsed, err := url.Parse(redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	if host := parsed.Hostname(); host != "" {
		c.Host = host
	}

	if port := parsed.Port(); port != "" {
		p, err := validateInt(port, minPort, maxPort, "port")
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		c.Port = p
	}

	if password, ok := parsed.User.Password(); ok {
		c.Password = password
	}

	if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
		db, err := validateInt(path, minDB, maxDB, "db")
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		c.DB = db
	}

	return nil
}

// GetRedisAddr returns the host:port address, bracketing IPv6 hosts.
func (c *RedisConfig) GetRedisAddr() string {
	host := c.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func validateInt(raw string, min, max int, name string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return n, nil
}

func validateDuration(raw string, min, max time.Duration, name string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", name, err)
	}
	if d < min || d > max {
		return 0, fmt.Errorf("%s must be between %v and %v", name, min, max)
	}
	return d, nil
}
