// Package repositorycache provides cached repository decorators for go-repository-bun.
//
// # Overview
//
// CachedRepository[T] wraps a repository.Repository[T] and caches its reads
// in a querycache.Cache. Each read is stored under a structured query key
//
//	Key{namespace, method, args..., criteria}
//
// so writes can drop related reads with a partial key instead of tracking
// string prefixes. The namespace defaults to the snake_case name of T.
//
// # Basic Usage
//
//	service, _ := cache.NewCacheService(cache.DefaultConfig())
//	queries, _ := querycache.New(service)
//
//	users := repositorycache.New[*User](base, queries)
//	user, err := users.GetByID(ctx, "user-123")
//	list, total, err := users.List(ctx)
//
// # Cached vs Pass-through Operations
//
// Get, GetByID, GetByIdentifier, List and Count are cached. Writes go to the
// base repository and invalidate on success:
//
//   - Create and GetOrCreate variants drop List and Count reads.
//   - Update, Upsert, Delete and ForceDelete variants also drop Get reads and
//     the GetByID and GetByIdentifier reads of the written records.
//   - DeleteMany and DeleteWhere variants drop every read of the namespace.
//
// Reads inside a transaction (*Tx) and Raw queries are never cached.
// Invalidation failures are logged and never fail the write.
//
// # Criteria in keys
//
// Select criteria are functions and only their names reach the key. When
// the same criteria function captures different values, attach them with
// WithKeyHint so the reads get distinct keys.
//
// # Tags
//
// WithCacheTags labels reads made with a context; InvalidateTags drops them
// later, e.g. everything a dashboard loaded.
//
// # Observing reads
//
// The entries live in the shared querycache.Cache, so any read can be
// observed like other queries:
//
//	stop, _ := queries.Observe(querykey.Key{"user", "GetByID", "user-123", []repository.SelectCriteria(nil)}, onChange)
//	defer stop()
//
// See pkg/di for a container that wires the cache, the scheduler and the
// decorators together.
package repositorycache
