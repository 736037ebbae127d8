package querycache

// EventType identifies what happened to an entry.
type EventType int

const (
	// EventAdded fires on the cache bus when Build creates an entry.
	EventAdded EventType = iota
	// EventUpdated fires when an entry receives new data.
	EventUpdated
	// EventError fires when a fetch for the entry fails.
	EventError
	// EventInvalidated fires when an entry is marked stale.
	EventInvalidated
	// EventRemoved fires when an entry leaves the cache.
	EventRemoved
)

var eventTypeNames = [...]string{
	EventAdded:       "added",
	EventUpdated:     "updated",
	EventError:       "error",
	EventInvalidated: "invalidated",
	EventRemoved:     "removed",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// Event is the payload delivered to entry and cache listeners.
type Event struct {
	Type  EventType
	Entry *Entry
}
