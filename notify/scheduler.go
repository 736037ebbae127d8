package notify

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Scheduler defers a task until the current synchronous work is done.
// Schedule must not run task before it returns.
type Scheduler interface {
	Schedule(task func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(task func())

// Schedule calls f(task).
func (f SchedulerFunc) Schedule(task func()) { f(task) }

// Queue is a deterministic task queue. Nothing runs until Drain is called
// or the outermost Batch returns, which makes the flush boundary explicit.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
	depth int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Schedule appends task to the queue.
func (q *Queue) Schedule(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Pending returns the number of queued tasks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs queued tasks in order until the queue is empty, including
// tasks scheduled by the tasks it runs. It returns how many tasks ran.
func (q *Queue) Drain() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
		ran++
	}
}

// Batch runs fn and drains the queue once the outermost Batch returns.
func (q *Queue) Batch(fn func()) {
	q.mu.Lock()
	q.depth++
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.depth--
		outermost := q.depth == 0
		q.mu.Unlock()
		if outermost {
			q.Drain()
		}
	}()

	fn()
}

// Loop runs scheduled tasks one at a time on a dedicated goroutine, in the
// order they were scheduled.
//
// Sync and Close may be called from a running task, such as a listener.
// Sync then returns at once and Close stops the loop without waiting for it.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	gid    atomic.Uint64

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	logger logrus.FieldLogger
}

// NewLoop starts a loop. A nil logger uses the logrus standard logger.
func NewLoop(logger logrus.FieldLogger) *Loop {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Schedule queues task. Tasks scheduled after Close are dropped.
func (l *Loop) Schedule(task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Debug("notify loop closed, dropping task")
		return
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Sync blocks until every task scheduled before the call has run.
func (l *Loop) Sync() {
	if l.onLoop() {
		l.logger.Debug("notify loop sync called from a task, not waiting")
		return
	}
	ch := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, func() { close(ch) })
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	select {
	case <-ch:
	case <-l.done:
	}
}

// Close runs the tasks already queued and stops the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	first := !l.closed
	l.closed = true
	l.mu.Unlock()

	if first {
		close(l.stop)
	}
	if l.onLoop() {
		return
	}
	<-l.done
}

// onLoop reports whether the caller runs on the loop goroutine.
func (l *Loop) onLoop() bool {
	return l.gid.Load() == goroutineID()
}

func (l *Loop) run() {
	defer close(l.done)
	l.gid.Store(goroutineID())
	for {
		select {
		case <-l.wake:
			l.runPending()
		case <-l.stop:
			l.runPending()
			return
		}
	}
}

func (l *Loop) runPending() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		l.runTask(task)
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithError(fmt.Errorf("%v", r)).Error("notify loop task panicked")
		}
	}()
	task()
}

// goroutineID parses the current goroutine id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

var (
	defaultOnce sync.Once
	defaultLoop *Loop
)

// DefaultScheduler returns the process-wide Loop used by buses that were
// not given a scheduler. It is started on first use and never closed.
func DefaultScheduler() Scheduler {
	defaultOnce.Do(func() {
		defaultLoop = NewLoop(nil)
	})
	return defaultLoop
}
