// Package queue provides an unbounded lock-free Multi-Producer Single-Consumer (MPSC) queue.
//
// It decouples many goroutines producing outbound messages (e.g. websocket client handlers
// emitting gateway events) from the single goroutine owning the connection that writes them.
//
// Features and Guarantees:
//
//   - Lock-Free pushes: producers only use atomic operations on the linked list
//   - Unbounded: Push never blocks, a slow consumer only grows the queue
//   - Per producer FIFO: items of one producer are delivered in push order. Items of
//     concurrent producers are interleaved in the order their pushes completed.
//   - Single Consumer: items are delivered on the channel returned by Recv
//   - Close drains: items pushed before Close are still delivered, then Recv is closed
package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the linked list
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// MPSC is a lock-free multi-producer single-consumer queue
type MPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan T
	closed atomic.Bool
	length atomic.Int64

	// the consumer sleeps on cond while the list is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates a queue and starts its consumer goroutine
func NewMPSC[T any]() *MPSC[T] {
	sentinel := &node[T]{}

	q := &MPSC[T]{
		out: make(chan T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()

	return q
}

// Push appends an item. It returns false if the queue is closed.
func (q *MPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()

		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may already have moved the tail, that is fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)

				// signal under the lock, otherwise the wakeup can get lost between
				// the consumer's emptiness check and its Wait
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin a little under low contention, yield under high contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume moves items from the list to the output channel
func (q *MPSC[T]) consume() {
	defer close(q.out)

	var zero T
	for {
		drained := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			drained = true

			value := next.value
			q.head.Store(next)
			q.out <- value
			q.length.Add(-1)

			// release the value for the gc, next is the new sentinel
			next.value = zero
		}

		if !drained && q.closed.Load() {
			return
		}

		if !drained {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the items are delivered on. It is closed after Close once the queue is drained.
func (q *MPSC[T]) Recv() <-chan T {
	return q.out
}

// Close rejects further pushes. Items already queued are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the approximate number of queued items
func (q *MPSC[T]) Len() int {
	return int(q.length.Load())
}
