package querycache

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/notify"
	"github.com/goliatone/go-query-cache/querykey"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

// Cache holds one Entry per canonical key hash and stores entry values in a
// cache.CacheService. Every entry event is also relayed to the listeners of
// the Cache itself; like any bus, those see the latest event of each flush.
type Cache struct {
	notify.Subscribable[Event]
	bus *notify.Bus[Event]

	service  cache.CacheService
	entries  *xsync.MapOf[string, *Entry]
	logger   logrus.FieldLogger
	metrics  *metrics
	entryBus []notify.Option
	now      func() time.Time
}

// New returns a Cache backed by service.
func New(service cache.CacheService, opts ...Option) (*Cache, error) {
	if service == nil {
		return nil, goerrors.New("querycache: cache service is required", goerrors.CategoryBadInput).
			WithTextCode("QUERY_CACHE_NO_SERVICE")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m := newMetrics(o.namespace)
	if err := m.register(o.registerer); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "querycache: cannot register metrics").
			WithTextCode("QUERY_CACHE_METRICS")
	}

	base := o.reporter
	if base == nil {
		base = notify.LogrusReporter(o.logger)
	}
	reporter := func(err error) {
		m.listenerErrors.Inc()
		base(err)
	}

	busOpts := []notify.Option{notify.WithErrorReporter(reporter)}
	if o.scheduler != nil {
		busOpts = append(busOpts, notify.WithScheduler(o.scheduler))
	}

	bus := notify.New[Event](busOpts...)
	return &Cache{
		Subscribable: bus,
		bus:          bus,
		service:      service,
		entries:      xsync.NewMapOf[string, *Entry](),
		logger:       o.logger,
		metrics:      m,
		entryBus: append(slices.Clone(busOpts),
			notify.WithOnSubscribe(m.observers.Inc),
			notify.WithOnUnsubscribe(m.observers.Dec),
		),
		now: o.now,
	}, nil
}

// Service returns the backing cache service.
func (c *Cache) Service() cache.CacheService { return c.service }

// Len returns the number of entries.
func (c *Cache) Len() int { return c.entries.Size() }

// Build returns the entry for key, creating it when absent. Creating an
// entry emits EventAdded.
func (c *Cache) Build(key querykey.Key) (*Entry, error) {
	hash, err := hashKey(key)
	if err != nil {
		return nil, err
	}

	entry, loaded := c.entries.LoadOrCompute(hash, func() *Entry {
		return newEntry(key, hash, c.entryBus)
	})
	if !loaded {
		c.metrics.entries.Inc()
		c.emit(entry, EventAdded)
	}
	return entry, nil
}

// Find returns the entry for key. Keys that cannot be hashed are never
// present.
func (c *Cache) Find(key querykey.Key) (*Entry, bool) {
	hash, err := querykey.Hash(key)
	if err != nil {
		return nil, false
	}
	return c.entries.Load(hash)
}

// FindAll returns the entries whose key partially matches filter, ordered
// by hash. An empty filter matches every entry.
func (c *Cache) FindAll(filter querykey.Key) ([]*Entry, error) {
	if _, err := hashKey(filter); err != nil {
		return nil, err
	}

	var (
		matches  []*Entry
		matchErr error
	)
	c.entries.Range(func(_ string, entry *Entry) bool {
		ok, err := querykey.PartialMatch(entry.key, filter)
		if err != nil {
			matchErr = err
			return false
		}
		if ok {
			matches = append(matches, entry)
		}
		return true
	})
	if matchErr != nil {
		return nil, invalidKey(matchErr)
	}

	slices.SortFunc(matches, func(a, b *Entry) int { return strings.Compare(a.hash, b.hash) })
	return matches, nil
}

// Observe subscribes listener to the entry for key, building it if needed.
func (c *Cache) Observe(key querykey.Key, listener notify.Listener[Event]) (unsubscribe func(), err error) {
	entry, err := c.Build(key)
	if err != nil {
		return nil, err
	}
	return entry.Subscribe(listener), nil
}

// Fetch returns the value cached for key, calling fn on a miss. The entry
// records the outcome and emits EventUpdated when it receives new data or
// EventError when fn fails.
func Fetch[T any](ctx context.Context, c *Cache, key querykey.Key, fn cache.FetchFn[T]) (T, error) {
	var zero T

	entry, err := c.Build(key)
	if err != nil {
		return zero, err
	}

	var missed atomic.Bool
	value, err := cache.GetOrFetch(ctx, c.service, entry.hash, func(ctx context.Context) (T, error) {
		missed.Store(true)
		return fn(ctx)
	})
	if err != nil {
		c.metrics.fetches.WithLabelValues(outcomeError).Inc()
		c.entryLogger(entry).WithError(err).Warn("query fetch failed")
		entry.setError(err)
		c.emit(entry, EventError)
		return zero, err
	}

	if missed.Load() {
		c.metrics.fetches.WithLabelValues(outcomeMiss).Inc()
	} else {
		c.metrics.fetches.WithLabelValues(outcomeHit).Inc()
	}

	if missed.Load() || !entry.fresh() {
		entry.setData(value, c.now())
		c.emit(entry, EventUpdated)
	}
	return value, nil
}

// SetData stores value for key without fetching and emits EventUpdated.
func (c *Cache) SetData(ctx context.Context, key querykey.Key, value any) error {
	entry, err := c.Build(key)
	if err != nil {
		return err
	}

	if err := c.service.Set(ctx, entry.hash, value); err != nil {
		return err
	}

	entry.setData(value, c.now())
	c.emit(entry, EventUpdated)
	return nil
}

// Invalidate drops the stored values of every entry matching filter and
// marks those entries stale. The entries stay in the cache so observers
// keep their subscriptions; the next Fetch refetches. It returns the number
// of entries invalidated.
func (c *Cache) Invalidate(ctx context.Context, filter querykey.Key) (int, error) {
	entries, err := c.FindAll(filter)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	hashes := make([]string, 0, len(entries))
	for _, entry := range entries {
		hashes = append(hashes, entry.hash)
	}

	if err := c.service.InvalidateKeys(ctx, hashes); err != nil {
		return 0, err
	}

	for _, entry := range entries {
		entry.invalidate()
		c.emit(entry, EventInvalidated)
	}

	c.logger.WithFields(logrus.Fields{
		"filter":  querykey.MustHash(filter),
		"entries": len(entries),
	}).Debug("query cache invalidated")

	return len(entries), nil
}

// Remove drops the entry for key and its stored value. Removing an absent
// key only clears the backend.
func (c *Cache) Remove(ctx context.Context, key querykey.Key) error {
	hash, err := hashKey(key)
	if err != nil {
		return err
	}

	if err := c.service.Delete(ctx, hash); err != nil {
		return err
	}

	if entry, ok := c.entries.LoadAndDelete(hash); ok {
		c.removed(entry)
	}
	return nil
}

// Clear drops every entry and every stored query value.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.service.DeleteByPrefix(ctx, querykey.Prefix); err != nil {
		return err
	}

	var removed []*Entry
	c.entries.Range(func(hash string, _ *Entry) bool {
		if entry, ok := c.entries.LoadAndDelete(hash); ok {
			removed = append(removed, entry)
		}
		return true
	})

	slices.SortFunc(removed, func(a, b *Entry) int { return strings.Compare(a.hash, b.hash) })
	for _, entry := range removed {
		c.removed(entry)
	}

	c.logger.WithField("entries", len(removed)).Debug("query cache cleared")
	return nil
}

func (c *Cache) removed(entry *Entry) {
	c.metrics.entries.Dec()
	c.emit(entry, EventRemoved)
}

func (c *Cache) emit(entry *Entry, typ EventType) {
	c.metrics.events.WithLabelValues(typ.String()).Inc()
	event := Event{Type: typ, Entry: entry}
	entry.bus.Notify(event)
	c.bus.Notify(event)
}

func (c *Cache) entryLogger(entry *Entry) logrus.FieldLogger {
	return c.logger.WithFields(logrus.Fields{
		"key":         entry.hash,
		"fingerprint": entry.Fingerprint(),
	})
}

func hashKey(key querykey.Key) (string, error) {
	hash, err := querykey.Hash(key)
	if err != nil {
		return "", invalidKey(err)
	}
	return hash, nil
}

func invalidKey(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "querycache: invalid query key").
		WithTextCode("QUERY_KEY_INVALID")
}
