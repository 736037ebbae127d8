package cache

import (
	"context"
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidResultType is returned by GetOrFetch when the backend hands back
// a value that is not of the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through caching operations used by the
// query cache and the repository decorator. Keys are opaque strings, in
// practice querykey hashes.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
// A nil result yields the zero value of T.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		return zero, err
	}

	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, goerrors.Wrap(ErrInvalidResultType, goerrors.CategoryInternal,
			fmt.Sprintf("cached value for %q is %T, want %T", key, result, zero)).
			WithTextCode("CACHE_INVALID_RESULT_TYPE")
	}
	return typed, nil
}
