package gateway

import (
	"context"
	"sync"
	"sync/atomic"
)

// Outbound is the unbounded FIFO of envelopes waiting to be written. Any
// number of goroutines may Push; exactly one (the write loop) calls Next.
// Push never blocks.
type Outbound struct {
	mu     sync.Mutex
	items  []Envelope
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func NewOutbound() *Outbound {
	return &Outbound{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends env. It fails with ErrOutboundClosed once the queue is closed.
func (q *Outbound) Push(env Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrOutboundClosed
	}
	q.items = append(q.items, env)

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Next blocks until an envelope is available and returns the oldest one.
// It returns ErrOutboundClosed once the queue is closed, and ctx.Err() when
// ctx ends first.
func (q *Outbound) Next(ctx context.Context) (Envelope, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Envelope{}, ErrOutboundClosed
		}
		if len(q.items) > 0 {
			env := q.items[0]
			q.items[0] = Envelope{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return env, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

// Close rejects further pushes and wakes the consumer. Queued envelopes are
// discarded. Close is idempotent.
func (q *Outbound) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

// Len is the number of envelopes waiting.
func (q *Outbound) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DefaultInboundCapacity matches the buffer the read side has always used.
const DefaultInboundCapacity = 32

// Inbound is the bounded queue between the read loop (its only producer) and
// the router. A full queue is reported to the producer instead of blocking it.
type Inbound struct {
	ch        chan Envelope
	closeOnce sync.Once
	dropped   atomic.Int64
}

func NewInbound(capacity int) *Inbound {
	if capacity <= 0 {
		capacity = DefaultInboundCapacity
	}
	return &Inbound{ch: make(chan Envelope, capacity)}
}

// TrySend enqueues env without blocking. It returns ErrInboundFull and counts
// the drop when the queue is at capacity.
func (q *Inbound) TrySend(env Envelope) error {
	select {
	case q.ch <- env:
		return nil
	default:
		q.dropped.Add(1)
		return ErrInboundFull
	}
}

// Receive is the channel the consumer drains. It is closed by Close.
func (q *Inbound) Receive() <-chan Envelope { return q.ch }

// Close is called by the producer when it stops. It is idempotent.
func (q *Inbound) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Dropped is the number of envelopes rejected because the queue was full.
func (q *Inbound) Dropped() int64 { return q.dropped.Load() }

func (q *Inbound) Len() int { return len(q.ch) }

func (q *Inbound) Cap() int { return cap(q.ch) }
