package sbmark

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid benchmark configuration")

// Config describes one benchmark run. It is owned by the driver and read-only to workers.
type Config struct {
	Description       string `yaml:"description"`
	Bucket            string `yaml:"bucket"`
	Prefix            string `yaml:"root_prefix"`
	PutConcurrency    int    `yaml:"put_concurrency"`
	PutCountPerWorker int    `yaml:"put_count_per_thread"`
	GetConcurrency    int    `yaml:"get_concurrency"`
	GetCountPerWorker int    `yaml:"get_count_per_thread"`
	Verbose           bool   `yaml:"verbose"`

	// RateLimit caps the operations per second across all workers, 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	// Timeout bounds the whole run, 0 means no deadline.
	Timeout time.Duration `yaml:"timeout"`
	// Seed makes payloads and key selection reproducible, 0 seeds from crypto/rand.
	Seed uint64 `yaml:"seed"`

	Retry RetryPolicy `yaml:"retry"`
}

// RetryPolicy controls how GET workers wait for the bucket to be populated.
type RetryPolicy struct {
	// Backoff is the pause after an empty or failed listing.
	Backoff time.Duration `yaml:"backoff"`
	// MaxEmptyListings is the number of backoff rounds a sampler waits for an
	// empty or failing prefix before giving up. 0 waits forever.
	MaxEmptyListings int `yaml:"max_empty_listings"`
	// MaxPageRetries bounds consecutive transport failures on one listing page. 0 retries forever.
	MaxPageRetries int `yaml:"max_page_retries"`
}

func DefaultConfig() Config {
	return Config{
		PutConcurrency:    1,
		PutCountPerWorker: 1,
		GetConcurrency:    1,
		GetCountPerWorker: 1,
		Retry: RetryPolicy{
			Backoff: time.Second,
		},
	}
}

// LoadConfigFile reads a YAML file on top of DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Bucket == "":
		return fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	case c.PutConcurrency < 0 || c.GetConcurrency < 0:
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	case c.PutCountPerWorker < 0 || c.GetCountPerWorker < 0:
		return fmt.Errorf("%w: count per thread must not be negative", ErrInvalidConfig)
	case c.operationsOverflow():
		return fmt.Errorf("%w: total operation count overflows", ErrInvalidConfig)
	case c.TotalOperations() == 0:
		return fmt.Errorf("%w: nothing to do, all PUT and GET counts are zero", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	case c.Timeout < 0 || c.Retry.Backoff < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.Retry.MaxEmptyListings < 0 || c.Retry.MaxPageRetries < 0:
		return fmt.Errorf("%w: retry limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// TotalOperations is the number of stats a fully successful run records.
func (c *Config) TotalOperations() int {
	return c.PutConcurrency*c.PutCountPerWorker + c.GetConcurrency*c.GetCountPerWorker
}

// operationsOverflow reports whether TotalOperations does not fit an int.
// Both factors of each product must already be non-negative.
func (c *Config) operationsOverflow() bool {
	puts, ok := mulInt(c.PutConcurrency, c.PutCountPerWorker)
	if !ok {
		return true
	}
	gets, ok := mulInt(c.GetConcurrency, c.GetCountPerWorker)
	if !ok {
		return true
	}
	return puts > math.MaxInt-gets
}

func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}
