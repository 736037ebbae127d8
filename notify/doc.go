// Package notify delivers change notifications without flooding listeners.
//
// A Bus keeps an ordered set of listeners and at most one pending value.
// Notify records the value and, if no flush is scheduled yet, schedules one
// on its Scheduler. When the flush runs it delivers the latest value to the
// listeners registered at that moment, in subscription order:
//
//	q := notify.NewQueue()
//	bus := notify.New[int](notify.WithScheduler(q))
//	bus.Subscribe(func(v int) error { fmt.Println(v); return nil })
//
//	bus.Notify(1)
//	bus.Notify(2)
//	bus.Notify(3)
//	q.Drain() // prints 3, once
//
// Queue makes the flush boundary explicit, which suits tests and callers
// that group work with Batch. Loop runs flushes on a dedicated goroutine and
// is the default when no scheduler is given.
//
// Listener errors and panics are caught per listener and passed to the
// ErrorReporter as *ListenerError; delivery to the remaining listeners
// continues.
//
// Entities that own a bus usually keep Notify to themselves and embed the
// Subscribable view:
//
//	type Entry struct {
//		notify.Subscribable[Event]
//		bus *notify.Bus[Event]
//	}
package notify
