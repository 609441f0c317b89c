// Package eventloop runs closures one at a time on a single goroutine and
// schedules keyed, cancellable timers onto it.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned once Run has returned.
var ErrStopped = errors.New("event loop stopped")

// DefaultQueue is the task backlog used by New when queue <= 0.
const DefaultQueue = 1024

// Loop executes submitted tasks in FIFO order on the goroutine that calls
// Run. State touched only from tasks needs no further locking.
type Loop struct {
	tasks chan func()
	done  chan struct{}

	mu     sync.Mutex
	timers map[any]*timer
}

type timer struct {
	t *time.Timer
}

// New returns a loop with room for queue pending tasks.
func New(queue int) *Loop {
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Loop{
		tasks:  make(chan func(), queue),
		done:   make(chan struct{}),
		timers: make(map[any]*timer),
	}
}

// Run drives the loop until ctx is done. Pending tasks are dropped and every
// timer is stopped on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	close(l.done)
	for k, tm := range l.timers {
		tm.t.Stop()
		delete(l.timers, k)
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Submit enqueues fn. It blocks while the backlog is full and reports false
// if the loop has stopped.
func (l *Loop) Submit(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish. If ctx ends first Do
// returns ctx.Err(); fn may still run later. Do must not be called from a
// task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule arms a timer that submits fn after d. Scheduling the same key again
// replaces the pending timer; a replaced or cancelled timer never runs.
func (l *Loop) Schedule(key any, d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	select {
	case <-l.done:
		return
	default:
	}

	if old, ok := l.timers[key]; ok {
		old.t.Stop()
	}
	tm := &timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Submit(func() {
			// Re-check on the loop: the key may have been re-armed or
			// cancelled after the timer fired.
			l.mu.Lock()
			current := l.timers[key] == tm
			if current {
				delete(l.timers, key)
			}
			l.mu.Unlock()
			if current {
				fn()
			}
		})
	})
	l.timers[key] = tm
}

// Cancel disarms the timer for key, if any.
func (l *Loop) Cancel(key any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tm, ok := l.timers[key]; ok {
		tm.t.Stop()
		delete(l.timers, key)
	}
}

// Pending reports whether a timer is armed for key.
func (l *Loop) Pending(key any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.timers[key]
	return ok
}
