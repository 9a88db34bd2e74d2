package router

import (
	"sync"
)

// GrowableBuffer is a thread-safe FIFO ring. It doubles its capacity once it
// is 70% full. A buffer with a limit stops growing at the limit and evicts
// its oldest item to make room, so producers never block.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	count  int
	limit  int // 0 grows without bound
	closed bool

	stats BufferStats
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count       int
	Capacity    int
	Enqueued    int64
	Dequeued    int64
	Evicted     int64
	ResizeCount int
}

// NewGrowableBuffer creates an unbounded buffer with the given initial
// capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	return NewBoundedBuffer[T](initialCapacity, 0)
}

// NewBoundedBuffer creates a buffer that grows up to limit items. A limit
// below the initial capacity is raised to it; zero means unbounded.
func NewBoundedBuffer[T any](initialCapacity, limit int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit > 0 && limit < initialCapacity {
		limit = initialCapacity
	}
	b := &GrowableBuffer[T]{
		ring:  make([]T, initialCapacity),
		limit: limit,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends item. It returns false only after Close.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if b.count+1 >= b.threshold() {
		b.grow()
	}
	if b.count == len(b.ring) {
		// At the limit: evict the oldest.
		b.pop()
		b.stats.Evicted++
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.stats.Enqueued++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available. It returns false once the
// buffer is closed and empty.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	b.stats.Dequeued++
	return b.pop(), true
}

// TryReceive returns the oldest item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	b.stats.Dequeued++
	return b.pop(), true
}

// DrainTo removes up to max items (all when max <= 0) in FIFO order.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	n := b.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.pop()
	}
	b.stats.Dequeued += int64(n)
	return out
}

// Close stops accepting items and wakes blocked receivers. Queued items can
// still be received.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current ring capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Count = b.count
	s.Capacity = len(b.ring)
	return s
}

// threshold is the fill level that triggers growth. Must hold mu.
func (b *GrowableBuffer[T]) threshold() int {
	t := len(b.ring) * 70 / 100
	if t < 1 {
		t = 1
	}
	return t
}

// pop removes the oldest item. Must hold mu with count > 0.
func (b *GrowableBuffer[T]) pop() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	return item
}

// grow doubles the ring, capped at the limit. Must hold mu.
func (b *GrowableBuffer[T]) grow() {
	size := len(b.ring) * 2
	if b.limit > 0 && size > b.limit {
		size = b.limit
	}
	if size <= len(b.ring) {
		return
	}

	ring := make([]T, size)
	for i := 0; i < b.count; i++ {
		ring[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = ring
	b.head = 0
	b.stats.ResizeCount++
}
