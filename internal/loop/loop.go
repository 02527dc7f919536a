package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/crashline/internal/queue"
)

// ErrStopped is returned when a task cannot run because the loop has stopped.
var ErrStopped = errors.New("event loop stopped")

// Loop runs posted tasks one at a time in FIFO order.
type Loop struct {
	logger *slog.Logger
	tasks  *queue.Buffer[func()]

	stopping atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a loop. Call Run to start processing.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger,
		tasks:  queue.New[func()](256),
		done:   make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		if l.stopping.Load() {
			return ErrStopped
		}
		return errors.New("event loop already running")
	}
	defer close(l.done)

	go func() {
		select {
		case <-ctx.Done():
			l.Stop()
		case <-l.done:
		}
	}()

	for {
		task, ok := l.tasks.Receive()
		if !ok || l.stopping.Load() {
			break
		}
		l.run(task)
	}

	l.logger.Debug("event loop exited", "discarded", l.tasks.Len())
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// run executes a single task, containing panics so one bad handler cannot
// take down the session.
func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	task()
}

// Post enqueues a task. Returns false once the loop is stopping.
func (l *Loop) Post(task func()) bool {
	if l.stopping.Load() {
		return false
	}
	return l.tasks.Send(task)
}

// Call runs fn on the loop and waits for it to finish.
// Must not be called from a task running on the loop.
func (l *Loop) Call(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop makes the loop exit after the current task. Remaining tasks are dropped.
// Stopping a loop that never ran releases pending Calls immediately.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopping.Store(true)
		l.tasks.Close()
		if l.started.CompareAndSwap(false, true) {
			close(l.done)
		}
	})
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Stopping reports whether Stop has been called.
func (l *Loop) Stopping() bool {
	return l.stopping.Load()
}

// Timer is a cancellable callback scheduled onto the loop.
type Timer struct {
	t       *time.Timer
	stopped atomic.Bool
}

// After schedules fn to run on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have raced with the post; the flag is authoritative.
			if tm.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return tm
}

// Stop cancels the timer. Safe on a nil or already-fired timer.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.stopped.Store(true)
	t.t.Stop()
}

// Active reports whether the callback is still due to run.
func (t *Timer) Active() bool {
	return t != nil && !t.stopped.Load()
}
