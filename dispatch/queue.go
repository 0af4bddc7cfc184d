// Package dispatch provides the single-consumer command queue that hosts
// use to run gauge callbacks on one designated goroutine, typically the
// simulation loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Run once the queue is closed and drained.
var ErrClosed = errors.New("dispatch: queue closed")

// Queue buffers commands posted from any goroutine and runs them, in post
// order, on whichever goroutine calls Drain or Run. Drains never overlap.
type Queue struct {
	log *slog.Logger

	mu      sync.Mutex
	pending []func()
	limit   int
	closed  bool
	wake    chan struct{}

	consumer sync.Mutex
	ran      uint64
	panics   uint64
}

// New creates a queue holding at most limit pending commands; limit <= 0
// means unbounded.
func New(limit int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		log:   logger.With(slog.String("component", "dispatch")),
		limit: limit,
		wake:  make(chan struct{}, 1),
	}
}

// Post enqueues cmd. It returns false when the queue is closed or full, in
// which case the caller is expected to run cmd itself.
func (q *Queue) Post(cmd func()) bool {
	if cmd == nil {
		return true
	}
	q.mu.Lock()
	if q.closed || (q.limit > 0 && len(q.pending) >= q.limit) {
		n, closed := len(q.pending), q.closed
		q.mu.Unlock()
		q.log.Warn("command rejected", "pending", n, "closed", closed)
		return false
	}
	q.pending = append(q.pending, cmd)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain runs every command pending at the time of the call, plus any
// posted by those commands, and returns how many ran. A panicking command
// is logged and skipped.
func (q *Queue) Drain() int {
	q.consumer.Lock()
	defer q.consumer.Unlock()

	n := 0
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, cmd := range batch {
			q.run(cmd)
			n++
		}
	}
}

func (q *Queue) run(cmd func()) {
	defer func() {
		if r := recover(); r != nil {
			q.panics++
			q.log.Error("command panicked", "panic", fmt.Sprint(r))
		}
	}()
	cmd()
	q.ran++
}

// Run drains the queue each time commands arrive until ctx is done or the
// queue is closed. On close it drains what is left and returns ErrClosed.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
		q.Drain()
		if q.isClosed() {
			q.Drain()
			return ErrClosed
		}
	}
}

// Close stops accepting commands and wakes Run. Pending commands still
// run on the next Drain.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stats reports commands completed and commands that panicked.
func (q *Queue) Stats() (ran, panicked uint64) {
	q.consumer.Lock()
	defer q.consumer.Unlock()
	return q.ran, q.panics
}
