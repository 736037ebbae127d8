// Package cache provides the cache service interface and backends used by
// the query cache and the repository decorator.
//
// # Overview
//
// CacheService is a read-through cache keyed by opaque strings. The query
// cache stores values under querykey hashes ("qk:[...]"), which makes
// DeleteByPrefix usable for dropping a whole family of keys:
//
//	service, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	user, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) (User, error) {
//		return repository.GetByID(ctx, "user-123")
//	})
//
// # Backends
//
// Config.Backend selects the implementation:
//
//   - "memory" (default): sturdyc, in-process with sharding, early refreshes
//     and missing record storage
//   - "redis": go-redis with msgpack encoded values, shared between processes
//
// The redis backend decodes hits into the result type of the fetch function,
// so callers should always use the typed GetOrFetch wrapper with a concrete T.
//
// # Error Handling
//
// Configuration problems are reported as validation category errors from
// github.com/goliatone/go-errors, one field error per invalid field. A value
// of the wrong type coming back from a backend yields ErrInvalidResultType
// and the zero value instead of a panic.
package cache
