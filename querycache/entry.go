package querycache

import (
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/notify"
	"github.com/goliatone/go-query-cache/querykey"
)

// Status is the lifecycle state of an Entry.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Entry is the cache record for one key. Listeners subscribe through the
// embedded Subscribable; only the owning Cache can notify.
type Entry struct {
	notify.Subscribable[Event]
	bus *notify.Bus[Event]

	key  querykey.Key
	hash string

	mu          sync.RWMutex
	status      Status
	data        any
	err         error
	updatedAt   time.Time
	invalidated bool
}

func newEntry(key querykey.Key, hash string, busOpts []notify.Option) *Entry {
	bus := notify.New[Event](busOpts...)
	return &Entry{
		Subscribable: bus,
		bus:          bus,
		key:          key,
		hash:         hash,
	}
}

// Key returns the key the entry was built from. It must not be mutated.
func (e *Entry) Key() querykey.Key { return e.key }

// Hash returns the canonical key hash.
func (e *Entry) Hash() string { return e.hash }

// Fingerprint returns a compact numeric form of the hash.
func (e *Entry) Fingerprint() uint64 { return querykey.Fingerprint(e.hash) }

// Status returns the current lifecycle state.
func (e *Entry) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Data returns the last value stored for the entry.
func (e *Entry) Data() any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data
}

// Err returns the error of the last failed fetch, or nil.
func (e *Entry) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// UpdatedAt returns when the entry last received data.
func (e *Entry) UpdatedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.updatedAt
}

// IsInvalidated reports whether the entry was invalidated since its last update.
func (e *Entry) IsInvalidated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.invalidated
}

// fresh reports whether the entry holds valid data.
func (e *Entry) fresh() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status == StatusSuccess && !e.invalidated
}

func (e *Entry) setData(data any, at time.Time) {
	e.mu.Lock()
	e.status = StatusSuccess
	e.data = data
	e.err = nil
	e.updatedAt = at
	e.invalidated = false
	e.mu.Unlock()
}

func (e *Entry) setError(err error) {
	e.mu.Lock()
	e.status = StatusError
	e.err = err
	e.mu.Unlock()
}

func (e *Entry) invalidate() {
	e.mu.Lock()
	e.invalidated = true
	e.mu.Unlock()
}
