package project

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned by Call once the loop no longer accepts work.
var ErrStopped = errors.New("loop stopped")

// Loop serializes access to the scene graph and its GPU device. Every
// mutation and every render runs as a function on the goroutine driving
// the loop, which for a live context is the locked main thread.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Do queues f without waiting and reports whether it was accepted. It is
// safe to call from any goroutine, including the loop itself. Functions run
// in submission order.
func (l *Loop) Do(f func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs f on the loop and returns its error. It must not be called from
// the loop goroutine.
func (l *Loop) Call(f func() error) error {
	done := make(chan error, 1)
	ok := l.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("loop: %v", r)
			}
		}()
		done <- f()
	})
	if !ok {
		return ErrStopped
	}
	return <-done
}

// Wake returns a channel signalled when work is queued. Frame-driven
// owners select on it alongside their event source.
func (l *Loop) Wake() <-chan struct{} { return l.wake }

// Drain runs the queued functions, including those queued while draining,
// and reports how many ran.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		queue := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(queue) == 0 {
			return n
		}
		for _, f := range queue {
			f()
			n++
		}
	}
}

// Run drains the queue until ctx is done. It is the loop body for owners
// without a frame clock, such as headless exports and tests.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			l.Stop()
			l.Drain()
			return
		case <-l.wake:
		}
	}
}

// Stop rejects further submissions. Work already queued still runs on the
// next Drain.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}
