package cacheinfra

import (
	"context"
)

// Service is the method set shared by the backend adapters.
type Service interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
	Close() error
}

var (
	_ Service = (*sturdycService)(nil)
	_ Service = (*redisService)(nil)
)

// NewService builds the adapter selected by cfg.Backend.
func NewService(cfg Config) (Service, error) {
	if cfg.Backend == BackendRedis {
		s, err := NewRedisService(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := NewSturdycService(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
