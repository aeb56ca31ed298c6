// Package dispatch hands committed blocks from the capture loop to a single
// consumer goroutine.
//
// The capture loop must never wait on the consumer: summarising a block can
// take tens of seconds while captions keep arriving at 10 Hz. [Dispatcher]
// therefore keeps an unbounded FIFO; [Dispatcher.Enqueue] never blocks.
//
// On shutdown the producer enqueues its final block and calls
// [Dispatcher.Close]. The consumer keeps running until the queue is empty,
// and Close waits for it up to a bounded drain timeout.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/meetscribe/internal/observe"
)

const defaultDrainTimeout = 2 * time.Second

var (
	// ErrClosed is returned by Enqueue after Close has been called.
	ErrClosed = errors.New("dispatch: closed")

	// ErrDrainTimeout is returned by Close when the consumer did not finish
	// the queued items in time.
	ErrDrainTimeout = errors.New("dispatch: drain timed out")
)

// Handler processes one item. Returned errors are logged; they never stop
// the consumer.
type Handler[T any] func(ctx context.Context, item T) error

// Option configures a [Dispatcher].
type Option func(*options)

type options struct {
	drainTimeout time.Duration
	metrics      *observe.Metrics
}

// WithDrainTimeout bounds how long Close waits for the queue to drain.
// Default: 2s.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) {
		o.drainTimeout = d
	}
}

// WithMetrics records queue depth and handler failures on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Dispatcher is a single-consumer FIFO. Enqueue may be called from any
// goroutine.
type Dispatcher[T any] struct {
	handler Handler[T]
	opts    options

	mu      sync.Mutex
	queue   []T
	closed  bool
	started bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New returns a Dispatcher delivering items to h. Call Start to begin
// consuming.
func New[T any](h Handler[T], opts ...Option) *Dispatcher[T] {
	o := options{drainTimeout: defaultDrainTimeout}
	for _, fn := range opts {
		fn(&o)
	}
	return &Dispatcher[T]{
		handler: h,
		opts:    o,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Handlers receive a context that
// carries ctx's values but is not cancelled with it, so that blocks queued
// during shutdown are still processed. Calls after the first, or after
// Close, are no-ops.
func (d *Dispatcher[T]) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started || d.closed {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	go d.loop(context.WithoutCancel(ctx))
}

// Enqueue appends item to the queue. It never blocks.
func (d *Dispatcher[T]) Enqueue(item T) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.queue = append(d.queue, item)
	d.mu.Unlock()

	if d.opts.metrics != nil {
		d.opts.metrics.QueueDepth.Add(context.Background(), 1)
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len reports the number of items waiting for the consumer.
func (d *Dispatcher[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close rejects further items and waits for the consumer to drain the
// queue. It returns [ErrDrainTimeout] when the drain takes longer than the
// configured timeout; the consumer keeps running in the background in that
// case. Close is safe to call multiple times.
func (d *Dispatcher[T]) Close() error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		started := d.started
		d.mu.Unlock()
		close(d.stop)
		if !started {
			close(d.done)
		}
	})

	timer := time.NewTimer(d.opts.drainTimeout)
	defer timer.Stop()
	select {
	case <-d.done:
		return nil
	case <-timer.C:
		if n := d.Len(); n > 0 {
			return fmt.Errorf("%w: %d item(s) left", ErrDrainTimeout, n)
		}
		return ErrDrainTimeout
	}
}

// Done is closed once the consumer has exited.
func (d *Dispatcher[T]) Done() <-chan struct{} { return d.done }

// loop runs while not stopped or while items remain.
func (d *Dispatcher[T]) loop(ctx context.Context) {
	defer close(d.done)
	for {
		item, ok := d.pop()
		if ok {
			d.handle(ctx, item)
			continue
		}
		select {
		case <-d.wake:
		case <-d.stop:
			if d.Len() == 0 {
				return
			}
		}
	}
}

func (d *Dispatcher[T]) pop() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	if len(d.queue) == 0 {
		return zero, false
	}
	item := d.queue[0]
	d.queue[0] = zero
	d.queue = d.queue[1:]
	if d.opts.metrics != nil {
		d.opts.metrics.QueueDepth.Add(context.Background(), -1)
	}
	return item, true
}

func (d *Dispatcher[T]) handle(ctx context.Context, item T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch: handler panicked", "panic", r)
			d.recordFailure(ctx)
		}
	}()
	if err := d.handler(ctx, item); err != nil {
		slog.Warn("dispatch: handler failed", "error", err)
		d.recordFailure(ctx)
	}
}

func (d *Dispatcher[T]) recordFailure(ctx context.Context) {
	if d.opts.metrics != nil {
		d.opts.metrics.HandlerErrors.Add(ctx, 1)
	}
}
