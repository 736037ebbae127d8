package di

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/notify"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/repositorycache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Container provides dependency injection for cache related components.
// It owns one cache service, one notification loop and the query cache
// built on them, and hands them to the cached repositories it creates.
type Container struct {
	config    cache.Config
	service   cache.CacheService
	scheduler *notify.Loop
	queries   *querycache.Cache
	logger    logrus.FieldLogger
}

// Option configures a Container.
type Option func(*containerOptions)

type containerOptions struct {
	logger     logrus.FieldLogger
	registerer prometheus.Registerer
}

// WithLogger sets the logger shared by the query cache, the notification
// loop and the repositories.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithRegisterer registers the query cache metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *containerOptions) { o.registerer = reg }
}

// NewContainer creates a new DI container with the provided cache configuration.
// The backend is chosen by config.Backend.
func NewContainer(config cache.Config, opts ...Option) (*Container, error) {
	o := containerOptions{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	service, err := cache.NewCacheService(config)
	if err != nil {
		return nil, err
	}

	loop := notify.NewLoop(o.logger)
	queries, err := querycache.New(service,
		querycache.WithLogger(o.logger),
		querycache.WithScheduler(loop),
		querycache.WithRegisterer(o.registerer),
	)
	if err != nil {
		loop.Close()
		_ = cache.Close(service)
		return nil, err
	}

	return &Container{
		config:    config,
		service:   service,
		scheduler: loop,
		queries:   queries,
		logger:    o.logger,
	}, nil
}

// NewContainerWithDefaults creates a new DI container using default configuration.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// CacheService returns the singleton cache service instance.
func (c *Container) CacheService() cache.CacheService {
	return c.service
}

// Queries returns the query cache shared by every repository of the container.
func (c *Container) Queries() *querycache.Cache {
	return c.queries
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Sync blocks until every notification scheduled so far was delivered.
// Called from an observer it returns immediately.
func (c *Container) Sync() {
	c.scheduler.Sync()
}

// Close delivers pending notifications, stops the loop and closes the
// cache service.
func (c *Container) Close() error {
	c.scheduler.Close()
	return cache.Close(c.service)
}

// NewCachedRepository creates a new cached repository that wraps the provided base repository.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[User](container, baseUserRepository)
func NewCachedRepository[T any](container *Container, base repository.Repository[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	opts = append([]repositorycache.Option{repositorycache.WithLogger(container.logger)}, opts...)
	return repositorycache.New(base, container.queries, opts...)
}
