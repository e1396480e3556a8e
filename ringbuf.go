// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.6
//

package gnssir

import "sync"

// RingBuffer is a bounded, lossy conduit between one producer and one
// consumer. Push never blocks: when the buffer is full the oldest entry is
// overwritten and the drop counter incremented. Overflow is the designed
// degradation mode under load, not an error; consumers must tolerate gaps.
type RingBuffer[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int // index of the oldest entry
	n      int // number of entries held
	drops  uint64
	closed bool
	ready  chan struct{} // signals the consumer that data (or close) arrived
}

// NewRingBuffer creates a buffer holding at most capacity entries.
// capacity must be positive.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends item, overwriting the oldest entry when full.
// Returns false only after Close.
func (p *RingBuffer[T]) Push(item T) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if p.n == len(p.buf) {
		// Full: overwrite the oldest entry
		p.buf[p.head] = item
		p.head = (p.head + 1) % len(p.buf)
		p.drops++
	} else {
		p.buf[(p.head+p.n)%len(p.buf)] = item
		p.n++
	}
	p.mu.Unlock()
	p.notify()
	return true
}

// Pop removes and returns the oldest entry without blocking.
func (p *RingBuffer[T]) Pop() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	if p.n == 0 {
		return zero, false
	}
	item := p.buf[p.head]
	p.buf[p.head] = zero
	p.head = (p.head + 1) % len(p.buf)
	p.n--
	return item, true
}

// Drain removes and returns all retained entries in push order.
func (p *RingBuffer[T]) Drain() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.n == 0 {
		return nil
	}
	out := make([]T, 0, p.n)
	var zero T
	for ; p.n > 0; p.n-- {
		out = append(out, p.buf[p.head])
		p.buf[p.head] = zero
		p.head = (p.head + 1) % len(p.buf)
	}
	return out
}

// Len returns the current number of retained entries.
func (p *RingBuffer[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// Drops returns the cumulative number of overwritten entries.
func (p *RingBuffer[T]) Drops() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drops
}

// Ready returns a channel that receives a token whenever data arrives or the
// buffer is closed. The single consumer selects on it against shutdown.
func (p *RingBuffer[T]) Ready() <-chan struct{} {
	return p.ready
}

// Close marks the buffer closed and wakes the consumer. Pending entries stay
// readable through Pop/Drain.
func (p *RingBuffer[T]) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.notify()
}

// Closed reports whether Close has been called.
func (p *RingBuffer[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *RingBuffer[T]) notify() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}
