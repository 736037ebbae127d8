package querycache

import (
	"time"

	"github.com/goliatone/go-query-cache/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger     logrus.FieldLogger
	scheduler  notify.Scheduler
	reporter   notify.ErrorReporter
	registerer prometheus.Registerer
	namespace  string
	now        func() time.Time
}

func defaultOptions() options {
	return options{
		logger:    logrus.StandardLogger(),
		namespace: "querycache",
		now:       time.Now,
	}
}

// WithLogger sets the logger for fetch failures, invalidations and listener
// failures. Defaults to the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithScheduler sets the scheduler used by every entry bus and the cache bus.
// Defaults to notify.DefaultScheduler.
func WithScheduler(s notify.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithErrorReporter routes listener failures to r instead of the logger.
func WithErrorReporter(r notify.ErrorReporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithRegisterer registers the cache metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithMetricsNamespace overrides the "querycache" metric namespace.
func WithMetricsNamespace(namespace string) Option {
	return func(o *options) { o.namespace = namespace }
}

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
