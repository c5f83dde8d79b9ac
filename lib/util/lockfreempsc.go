package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Queue Types
// --------------------------------------------------------------------------

// mpscNode is one link of the queue. The head always points at a consumed
// (or sentinel) node, the first pending value is head.next.
type mpscNode[T any] struct {
	value *T
	next  atomic.Pointer[mpscNode[T]]
}

// LockFreeMPSC is an unbounded queue with any number of producers and exactly
// one consumer goroutine (started by NewLockFreeMPSC) that forwards values to
// the channel returned by Recv.
type LockFreeMPSC[T any] struct {
	head    atomic.Pointer[mpscNode[T]]
	tail    atomic.Pointer[mpscNode[T]]
	pending atomic.Int64
	closed  atomic.Bool

	out      chan *T
	consumer sync.WaitGroup

	// wakeup for the idle consumer, producers signal while holding mu
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates the queue and starts its forwarding goroutine.
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &mpscNode[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.forward()

	return q
}

// --------------------------------------------------------------------------
// Producer Side
// --------------------------------------------------------------------------

// Push appends value. It returns false if value is nil or the queue is closed.
// Safe for concurrent use.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	q.pending.Add(1)
	q.enqueue(&mpscNode[T]{value: value})

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()

	return true
}

// enqueue links n behind the current tail (Michael-Scott style append).
func (q *LockFreeMPSC[T]) enqueue(n *mpscNode[T]) {
	var spins uint8
	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// a failed swing is fine, the next producer helps
				q.tail.CompareAndSwap(tail, n)
				return
			}
		} else {
			// another producer linked a node but did not swing the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		spins = backoff(spins)
	}
}

// backoff spins with exponentially growing yields under contention.
func backoff(spins uint8) uint8 {
	if spins < 10 {
		spins++
		for i := 0; i < 1<<spins; i++ {
			runtime.Gosched()
		}
	}
	runtime.Gosched()
	return spins
}

// --------------------------------------------------------------------------
// Consumer Side
// --------------------------------------------------------------------------

// forward moves values from the list into the out channel until the queue is
// closed and empty.
func (q *LockFreeMPSC[T]) forward() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		if q.drain() {
			continue
		}
		if q.closed.Load() && !q.hasNext() {
			return
		}
		q.waitForWork()
	}
}

// drain forwards every value currently linked. Reports whether any was found.
func (q *LockFreeMPSC[T]) drain() bool {
	forwarded := false
	for {
		head := q.head.Load()
		next := head.next.Load()
		if next == nil {
			return forwarded
		}

		value := next.value
		q.head.Store(next)
		q.pending.Add(-1)
		q.out <- value

		// the node is the new sentinel, drop the reference for the gc
		next.value = nil
		forwarded = true
	}
}

func (q *LockFreeMPSC[T]) hasNext() bool {
	return q.head.Load().next.Load() != nil
}

// waitForWork parks the consumer until a producer or Close signals.
func (q *LockFreeMPSC[T]) waitForWork() {
	q.mu.Lock()
	for !q.hasNext() && !q.closed.Load() {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Recv returns the channel values are delivered on. It is closed once the
// queue has been closed and every pushed value was received.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Close rejects further pushes. Values pushed earlier are still delivered.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)

	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// IsClosed reports whether Close was called.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of values pushed but not yet handed to Recv.
func (q *LockFreeMPSC[T]) Len() int {
	return int(q.pending.Load())
}
