package repositorycache

import (
	"context"
	"fmt"
	"reflect"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/querykey"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// listResult wraps the tuple result from List operations for caching
type listResult[T any] struct {
	Records []T `json:"records" msgpack:"records"`
	Total   int `json:"total" msgpack:"total"`
}

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	namespace string
	logger    logrus.FieldLogger
}

// WithNamespace sets the first key component shared by every read of the
// repository. Defaults to the snake_case name of T.
func WithNamespace(namespace string) Option {
	return func(o *options) { o.namespace = namespace }
}

// WithLogger sets the logger used to report failed invalidations.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// CachedRepository decorates a base repository with caching functionality.
// Reads are cached in a querycache.Cache under keys of the form
//
//	Key{namespace, method, args..., criteria}
//
// and writes invalidate them with partial keys.
type CachedRepository[T any] struct {
	base      repository.Repository[T]
	queries   *querycache.Cache
	namespace string
	logger    logrus.FieldLogger
	tags      *tagIndex
}

// New creates a new CachedRepository that wraps the base repository with caching
func New[T any](base repository.Repository[T], queries *querycache.Cache, opts ...Option) *CachedRepository[T] {
	o := options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namespace == "" {
		o.namespace = namespaceFor[T]()
	}

	return &CachedRepository[T]{
		base:      base,
		queries:   queries,
		namespace: o.namespace,
		logger:    o.logger.WithField("namespace", o.namespace),
		tags:      newTagIndex(),
	}
}

// Namespace returns the first component of every cache key of the repository.
func (c *CachedRepository[T]) Namespace() string { return c.namespace }

// Queries returns the query cache backing the repository.
func (c *CachedRepository[T]) Queries() *querycache.Cache { return c.queries }

// Get retrieves a single record using the provided criteria, with caching
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key(ctx, "Get", criteria)
	return querycache.Fetch(ctx, c.queries, key, func(ctx context.Context) (T, error) {
		return c.base.Get(ctx, criteria...)
	})
}

// GetByID retrieves a record by ID with optional criteria, with caching
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key(ctx, "GetByID", id, criteria)
	return querycache.Fetch(ctx, c.queries, key, func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id, criteria...)
	})
}

// List retrieves multiple records using the provided criteria, with caching
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	key := c.key(ctx, "List", criteria)
	res, err := querycache.Fetch(ctx, c.queries, key, func(ctx context.Context) (listResult[T], error) {
		records, total, err := c.base.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

// Count returns the number of records matching the criteria, with caching
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	key := c.key(ctx, "Count", criteria)
	return querycache.Fetch(ctx, c.queries, key, func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, criteria...)
	})
}

// GetByIdentifier retrieves a record by identifier with optional criteria, with caching
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key(ctx, "GetByIdentifier", identifier, criteria)
	return querycache.Fetch(ctx, c.queries, key, func(ctx context.Context) (T, error) {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	})
}

// Create creates a new record and invalidates List and Count reads.
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.invalidateAfterCreate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.invalidateAfterCreate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateMany(ctx, records, criteria...)
	if err == nil {
		c.invalidateAfterCreate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.invalidateAfterCreate(ctx)
	}
	return result, err
}

// GetOrCreate may insert, so it invalidates like Create.
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := c.base.GetOrCreate(ctx, record)
	if err == nil {
		c.invalidateAfterCreate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	result, err := c.base.GetOrCreateTx(ctx, tx, record)
	if err == nil {
		c.invalidateAfterCreate(ctx)
	}
	return result, err
}

// Update updates a record and invalidates the reads that can observe it.
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result...)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result...)
	}
	return result, err
}

// Upsert can insert or update, the update invalidation covers both.
func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result...)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.invalidateRecords(ctx, result...)
	}
	return result, err
}

// Delete deletes a record and invalidates the reads that can observe it.
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.invalidateRecords(ctx, record)
	}
	return err
}

func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.DeleteTx(ctx, tx, record)
	if err == nil {
		c.invalidateRecords(ctx, record)
	}
	return err
}

// DeleteMany deletes by criteria. The affected records are unknown, so every
// read of the namespace is invalidated.
func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteMany(ctx, criteria...)
	if err == nil {
		c.invalidateNamespace(ctx)
	}
	return err
}

func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		c.invalidateNamespace(ctx)
	}
	return err
}

// DeleteWhere invalidates the whole namespace, like DeleteMany.
func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhere(ctx, criteria...)
	if err == nil {
		c.invalidateNamespace(ctx)
	}
	return err
}

func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		c.invalidateNamespace(ctx)
	}
	return err
}

// ForceDelete bypasses soft delete and invalidates like Delete.
func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.invalidateRecords(ctx, record)
	}
	return err
}

func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		c.invalidateRecords(ctx, record)
	}
	return err
}

// Reads inside a transaction may see uncommitted rows, they are never cached.

func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw queries are opaque to invalidation and pass through uncached.
func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository
func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// InvalidateTags invalidates every read made with one of tags attached
// through WithCacheTags. It returns the number of entries invalidated.
func (c *CachedRepository[T]) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	total := 0
	for _, key := range c.tags.take(tags...) {
		n, err := c.queries.Invalidate(ctx, key)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// key builds the query key for a read and registers it under the context tags.
func (c *CachedRepository[T]) key(ctx context.Context, method string, args ...any) querykey.Key {
	key := make(querykey.Key, 0, len(args)+3)
	key = append(key, c.namespace, method)
	key = append(key, args...)
	if hint, ok := keyHintFromContext(ctx); ok {
		key = append(key, hint)
	}

	if tags := cacheTagsFromContext(ctx); len(tags) > 0 {
		c.tags.add(key, tags...)
	}
	return key
}

func (c *CachedRepository[T]) invalidateAfterCreate(ctx context.Context) {
	c.invalidate(ctx,
		querykey.Key{c.namespace, "List"},
		querykey.Key{c.namespace, "Count"},
	)
}

// invalidateRecords drops the ID and identifier reads of each record plus
// every criteria based read.
func (c *CachedRepository[T]) invalidateRecords(ctx context.Context, records ...T) {
	filters := []querykey.Key{
		{c.namespace, "List"},
		{c.namespace, "Count"},
		{c.namespace, "Get"},
	}
	for _, record := range records {
		if id, ok := extractField(record, "ID", "Id", "id"); ok {
			filters = append(filters, querykey.Key{c.namespace, "GetByID", id})
		}
		if identifier, ok := extractField(record, "Identifier", "identifier", "Name", "name", "Code", "code"); ok {
			filters = append(filters, querykey.Key{c.namespace, "GetByIdentifier", identifier})
		}
	}
	c.invalidate(ctx, filters...)
}

func (c *CachedRepository[T]) invalidateNamespace(ctx context.Context) {
	c.invalidate(ctx, querykey.Key{c.namespace})
}

// invalidate logs failures instead of returning them, the write already succeeded.
func (c *CachedRepository[T]) invalidate(ctx context.Context, filters ...querykey.Key) {
	for _, filter := range filters {
		if _, err := c.queries.Invalidate(ctx, filter); err != nil {
			c.logger.WithError(err).WithField("filter", querykey.MustHash(filter)).Warn("cache invalidation failed")
		}
	}
}

// extractField returns the first of the named fields found on record,
// formatted as a string.
func extractField(record any, names ...string) (string, bool) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}

	for _, name := range names {
		field := v.FieldByName(name)
		if field.IsValid() && field.CanInterface() {
			return fmt.Sprintf("%v", field.Interface()), true
		}
	}
	return "", false
}

// namespaceFor derives the default namespace from T, e.g. *User becomes "user".
func namespaceFor[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if name := toSnake(t.Name()); name != "" {
		return name
	}
	return toSnake(t.String())
}
