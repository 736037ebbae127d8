package notify

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrListenerFailure matches every *ListenerError via errors.Is.
var ErrListenerFailure = errors.New("notify: listener failure")

// ListenerError is reported when a listener returns an error or panics
// during a flush. It never reaches the notifier or other listeners.
type ListenerError struct {
	SubscriptionID uuid.UUID
	Err            error
	// Recovered holds the panic value when the listener panicked.
	Recovered any
}

func (e *ListenerError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("notify: listener %s panicked: %v", e.SubscriptionID, e.Recovered)
	}
	return fmt.Sprintf("notify: listener %s failed: %v", e.SubscriptionID, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// Is reports whether target is ErrListenerFailure.
func (e *ListenerError) Is(target error) bool {
	return target == ErrListenerFailure
}

// ErrorReporter receives listener failures.
type ErrorReporter func(err error)

// NoopReporter discards listener failures.
func NoopReporter(error) {}

// LogrusReporter logs listener failures at error level.
func LogrusReporter(logger logrus.FieldLogger) ErrorReporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(err error) {
		entry := logger.WithError(err)
		var le *ListenerError
		if errors.As(err, &le) {
			entry = entry.WithField("subscription_id", le.SubscriptionID.String())
			if le.Recovered != nil {
				entry = entry.WithField("panic", true)
			}
		}
		entry.Error("notification listener failed")
	}
}
