package cacheinfra

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the configuration for the cache backends.
// The sturdyc fields apply to the memory backend, Redis to the redis backend.
// TTL applies to both.
type Config struct {
	// Backend selects the adapter. Empty means BackendMemory.
	Backend string

	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	NumShards int

	// TTL is the default time-to-live for cached entries.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh configures early refresh behavior for cached entries.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage enables storage for missing record flags.
	MissingRecordStorage bool

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration

	// Redis is required when Backend is BackendRedis.
	Redis *RedisConfig
}

// EarlyRefreshConfig configures early refresh behavior.
// Early refresh prevents cache stampedes by refreshing entries
// before they expire when they're frequently accessed.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Namespace is prepended to every key written to redis.
	Namespace string
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendMemory,
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 10 * time.Second,
			MaxAsyncRefreshTime: 20 * time.Second,
			SyncRefreshTime:     30 * time.Second,
			RetryBaseDelay:      100 * time.Millisecond,
		},
		MissingRecordStorage: true,
	}
}

// DefaultRedisConfig returns the redis settings used when none are given.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		Namespace: "qc:",
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid. Failures are
// returned as a validation category *goerrors.Error with one field error
// per invalid field.
func (c Config) Validate() error {
	memory := c.Backend == "" || c.Backend == BackendMemory

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(BackendMemory, BackendRedis)),
		validation.Field(&c.Capacity, validation.When(memory, validation.Required, validation.Min(1))),
		validation.Field(&c.NumShards, validation.When(memory, validation.Required, validation.Min(1))),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.When(memory, validation.Required, validation.Min(1), validation.Max(100))),
		validation.Field(&c.EarlyRefresh),
		validation.Field(&c.Redis, validation.When(c.Backend == BackendRedis, validation.Required)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration").
			WithTextCode("CACHE_CONFIG_INVALID")
	}
	return nil
}

// Validate implements validation.Validatable.
func (e EarlyRefreshConfig) Validate() error {
	nonNegative := validation.Min(time.Duration(0))
	return validation.ValidateStruct(&e,
		validation.Field(&e.MinAsyncRefreshTime, nonNegative),
		validation.Field(&e.MaxAsyncRefreshTime, nonNegative),
		validation.Field(&e.SyncRefreshTime, nonNegative),
		validation.Field(&e.RetryBaseDelay, nonNegative),
	)
}

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9:_.-]*$`)

// Validate implements validation.Validatable. The namespace is restricted
// to characters that carry no meaning in redis SCAN patterns.
func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Addr, validation.Required),
		validation.Field(&r.DB, validation.Min(0)),
		validation.Field(&r.Namespace, validation.Match(namespacePattern)),
	)
}
