package services

import (
	"context"
	"log/slog"
	"sync"
)

// listener guards callback delivery for one subscription so that nothing is
// delivered once unsubscribe has returned.
type listener struct {
	mu      sync.Mutex
	stopped bool
	once    sync.Once
	cancel  context.CancelFunc
}

func newListener(cancel context.CancelFunc) *listener {
	return &listener{cancel: cancel}
}

func (l *listener) deliver(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	fn()
	return true
}

func (l *listener) unsubscribe() {
	l.once.Do(func() {
		l.cancel()
		// waits for an in-flight callback to finish
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
	})
}

// listen runs fn on its own goroutine until the returned Unsubscribe is
// called or parent is done.
func listen(parent context.Context, fn func(ctx context.Context, l *listener)) Unsubscribe {
	ctx, cancel := context.WithCancel(parent)
	l := newListener(cancel)
	go fn(ctx, l)
	return l.unsubscribe
}

// dispatcher runs queued notifications one at a time. A notification queued
// from inside another notification runs after it returns instead of nesting.
type dispatcher struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func (d *dispatcher) enqueue(fns ...func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fns...)
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	defer func() {
		d.running = false
		d.mu.Unlock()
	}()
	for len(d.queue) > 0 {
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		runNotification(fn)
		d.mu.Lock()
	}
}

// runNotification contains a panicking subscriber so the rest of the queue
// is still delivered.
func runNotification(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscriber panicked", "panic", r)
		}
	}()
	fn()
}
