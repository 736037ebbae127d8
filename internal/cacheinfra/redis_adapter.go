package cacheinfra

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const scanBatchSize = 100

// redisService stores msgpack encoded values in redis. Keys are the cache
// keys with the configured namespace prepended.
type redisService struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	owned     bool
}

// NewRedisService validates cfg and connects a redis client from cfg.Redis.
// The returned service closes the client on Close.
func NewRedisService(cfg Config) (*redisService, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendRedis
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Redis == nil {
		return nil, goerrors.New("redis configuration is required", goerrors.CategoryValidation).
			WithTextCode("CACHE_CONFIG_INVALID")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	s := NewRedisServiceWithClient(client, cfg.Redis.Namespace, cfg.TTL)
	s.owned = true
	return s, nil
}

// NewRedisServiceWithClient wraps an existing client. The caller keeps
// ownership of client.
func NewRedisServiceWithClient(client redis.UniversalClient, namespace string, ttl time.Duration) *redisService {
	return &redisService{client: client, namespace: namespace, ttl: ttl}
}

// GetOrFetch decodes the stored value into the fetchFn result type, or
// calls fetchFn on a miss and stores its result.
func (s *redisService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := validateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.namespace+key).Bytes()
	switch {
	case err == nil:
		return s.decode(key, data, resultType(fetchFn))
	case !errors.Is(err, redis.Nil):
		return nil, s.wrap(err, "redis get failed", key)
	}

	result, err := callFetchFunctionWithReflection(ctx, fetchFn)
	if err != nil {
		return nil, err
	}

	if err := s.Set(ctx, key, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *redisService) decode(key string, data []byte, typ reflect.Type) (any, error) {
	ptr := reflect.New(typ)
	if err := msgpack.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "cannot decode cached value").
			WithTextCode("CACHE_DECODE_FAILED").
			WithMetadata(map[string]any{"key": key, "type": typ.String()})
	}
	return ptr.Elem().Interface(), nil
}

// Set encodes value with msgpack and stores it with the configured TTL.
func (s *redisService) Set(ctx context.Context, key string, value any) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "cannot encode cache value").
			WithTextCode("CACHE_ENCODE_FAILED").
			WithMetadata(map[string]any{"key": key})
	}

	if err := s.client.Set(ctx, s.namespace+key, data, s.ttl).Err(); err != nil {
		return s.wrap(err, "redis set failed", key)
	}
	return nil
}

// Delete removes a single entry.
func (s *redisService) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.namespace+key).Err(); err != nil {
		return s.wrap(err, "redis delete failed", key)
	}
	return nil
}

// DeleteByPrefix scans the namespace and removes every key starting with
// prefix. The prefix is matched client side since cache keys contain
// characters that are special in SCAN patterns.
func (s *redisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.namespace+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		if strings.HasPrefix(iter.Val(), s.namespace+prefix) {
			keys = append(keys, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return s.wrap(err, "redis scan failed", prefix)
	}

	return s.del(ctx, keys)
}

// InvalidateKeys removes the given keys in a single DEL.
func (s *redisService) InvalidateKeys(ctx context.Context, keys []string) error {
	namespaced := make([]string, 0, len(keys))
	for _, key := range keys {
		namespaced = append(namespaced, s.namespace+key)
	}
	return s.del(ctx, namespaced)
}

func (s *redisService) del(ctx context.Context, keys []string) error {
	for len(keys) > 0 {
		n := min(len(keys), scanBatchSize)
		if err := s.client.Del(ctx, keys[:n]...).Err(); err != nil {
			return s.wrap(err, "redis delete failed", keys[0])
		}
		keys = keys[n:]
	}
	return nil
}

// Close closes the client when the service created it.
func (s *redisService) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *redisService) wrap(err error, message, key string) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithTextCode("CACHE_BACKEND_FAILED").
		WithMetadata(map[string]any{"key": key})
}
