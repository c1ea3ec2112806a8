/*
Package dispatch provides the single executor on which application state is touched.

A Loop runs posted closures one at a time, in the order they were posted, on the goroutine
that called Run. Network work happens elsewhere; its completion is posted back with Go,
so code running on the loop never needs its own locking.
*/
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"matchup/internal/pkg/logx"
)

// ErrStopped is returned when work is posted to a loop that has stopped.
var ErrStopped = errors.New("dispatch: loop stopped")

// Loop is a FIFO executor. The queue is unbounded so Post never blocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	// wake holds at most one pending signal that the queue is non-empty.
	wake chan struct{}

	stopChan chan struct{}
	stopOnce sync.Once

	// done is closed when Run returns.
	done chan struct{}

	logger zerolog.Logger
}

// NewLoop creates a loop. Nothing executes until Run is called.
func NewLoop() *Loop {
	return &Loop{
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logx.Component("dispatch"),
	}
}

// Run executes posted closures until ctx is done or Stop is called. Closures still queued
// at that point are discarded. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug().Msg("Loop context done.")
			return
		case <-l.stopChan:
			l.logger.Debug().Msg("Loop stopped.")
			return
		case <-l.wake:
		}

		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.execute(task)

			select {
			case <-l.stopChan:
				return
			default:
			}
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// execute runs one task, containing any panic so the loop survives it.
func (l *Loop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Recovered from panic in loop task.")
		}
	}()
	task()
}

// Post queues fn. It reports false when the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
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
		// the task may have been discarded
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends Run and rejects further posts. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()

		close(l.stopChan)
	})
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Go runs work on its own goroutine and delivers its result to done on the loop.
// If the loop stops first the result is dropped.
func Go[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), done func(T, error)) {
	go func() {
		v, err := work(ctx)
		if !l.Post(func() { done(v, err) }) {
			l.logger.Warn().Err(err).Msg("Loop stopped; completion dropped.")
		}
	}()
}
