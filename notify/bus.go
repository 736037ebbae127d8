package notify

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Listener receives delivered values. A returned error is reported through
// the bus ErrorReporter and does not affect other listeners.
type Listener[T any] func(value T) error

// Subscribable is the read side of a Bus. Entities that own a bus can embed
// this interface to expose subscription without exposing Notify.
type Subscribable[T any] interface {
	Subscribe(listener Listener[T]) (unsubscribe func())
	ListenerCount() int
	HasListeners() bool
}

var _ Subscribable[int] = (*Bus[int])(nil)

// Option configures a Bus.
type Option func(*options)

type options struct {
	scheduler     Scheduler
	reporter      ErrorReporter
	onSubscribe   func()
	onUnsubscribe func()
}

// WithScheduler sets the scheduler that runs flushes.
func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithErrorReporter sets where listener failures go.
func WithErrorReporter(r ErrorReporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithLogger reports listener failures to logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.reporter = LogrusReporter(logger) }
}

// WithOnSubscribe sets a hook fired synchronously on every Subscribe call.
func WithOnSubscribe(fn func()) Option {
	return func(o *options) { o.onSubscribe = fn }
}

// WithOnUnsubscribe sets a hook fired on the first call of each
// unsubscribe function.
func WithOnUnsubscribe(fn func()) Option {
	return func(o *options) { o.onUnsubscribe = fn }
}

type subscription[T any] struct {
	id       uuid.UUID
	listener Listener[T]
}

// Bus coalesces notifications and delivers the latest value to its
// listeners once per flush. The zero value is ready to use with the
// default scheduler and a logrus reporter.
type Bus[T any] struct {
	mu        sync.Mutex
	opts      options
	listeners []*subscription[T]

	// flush state: at most one pending value per bus
	scheduled bool
	pending   bool
	value     T
}

// New returns a bus configured with opts.
func New[T any](opts ...Option) *Bus[T] {
	b := &Bus[T]{}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

// Subscribe registers listener and fires the subscribe hook. Every call
// adds a distinct entry, even for the same function. The returned function
// removes the entry; only its first call has an effect.
func (b *Bus[T]) Subscribe(listener Listener[T]) (unsubscribe func()) {
	if listener == nil {
		panic("notify: nil listener")
	}

	sub := &subscription[T]{id: uuid.New(), listener: listener}

	b.mu.Lock()
	b.listeners = append(b.listeners, sub)
	hook := b.opts.onSubscribe
	b.mu.Unlock()

	if hook != nil {
		hook()
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(sub) })
	}
}

func (b *Bus[T]) unsubscribe(sub *subscription[T]) {
	b.mu.Lock()
	b.listeners = slices.DeleteFunc(b.listeners, func(s *subscription[T]) bool { return s == sub })
	hook := b.opts.onUnsubscribe
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Notify records value as the pending payload. The first call since the
// last flush schedules a flush; later calls only replace the value.
func (b *Bus[T]) Notify(value T) {
	b.mu.Lock()
	b.value = value
	b.pending = true
	if b.scheduled {
		b.mu.Unlock()
		return
	}
	b.scheduled = true
	scheduler := b.scheduler()
	b.mu.Unlock()

	scheduler.Schedule(b.flush)
}

// Flush delivers the pending value now, if any. The flush that was already
// scheduled still runs and finds nothing to deliver.
func (b *Bus[T]) Flush() {
	b.flush()
}

// ListenerCount returns the number of registered listeners.
func (b *Bus[T]) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// HasListeners reports whether any listener is registered.
func (b *Bus[T]) HasListeners() bool {
	return b.ListenerCount() > 0
}

func (b *Bus[T]) flush() {
	b.mu.Lock()
	b.scheduled = false
	if !b.pending {
		b.mu.Unlock()
		return
	}
	value := b.value
	var zero T
	b.value = zero
	b.pending = false
	// listeners are read at flush time, not at notify time
	snapshot := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.deliver(sub, value)
	}
}

func (b *Bus[T]) deliver(sub *subscription[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			b.report(&ListenerError{
				SubscriptionID: sub.id,
				Err:            fmt.Errorf("panic: %v", r),
				Recovered:      r,
			})
		}
	}()

	if err := sub.listener(value); err != nil {
		b.report(&ListenerError{SubscriptionID: sub.id, Err: err})
	}
}

func (b *Bus[T]) report(err error) {
	b.mu.Lock()
	reporter := b.opts.reporter
	b.mu.Unlock()

	if reporter == nil {
		reporter = LogrusReporter(nil)
	}
	reporter(err)
}

func (b *Bus[T]) scheduler() Scheduler {
	if b.opts.scheduler != nil {
		return b.opts.scheduler
	}
	return DefaultScheduler()
}
