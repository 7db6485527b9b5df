package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the mailbox
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Mailbox is a lock-free multi-producer single-consumer queue.
// Implementation uses a linked list of nodes with atomic operations
// for concurrent push operations without locks
type Mailbox[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan T
	discard  chan struct{}
	consumer sync.WaitGroup
	closed   atomic.Bool

	discardOnce sync.Once

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// NewMailbox creates a new mailbox and starts its delivery goroutine
func NewMailbox[T any]() *Mailbox[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &Mailbox[T]{
		out:     make(chan T),
		discard: make(chan struct{}),
	}

	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push adds an item to the mailbox.
// Returns true if the item was added, or false if the mailbox is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Mailbox[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may already have moved the tail, that is fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.wake()
				return true
			}
		} else {
			// help update the tail pointer if another producer has already appended a node but hasn't updated the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		/*
		 Exponential backoff under contention:
		  - few retries: spin to avoid scheduling overhead
		  - more retries: yield so other producers can finish their append
		*/
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. The lock pairs with the check in consume,
// a signal can't fall between that check and cond.Wait.
func (q *Mailbox[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume continuously sends items from the linked list to the output channel and frees memory
func (q *Mailbox[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	var zero T

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()

			if next == nil {
				break
			}

			hasItems = true
			value := next.value

			// move head pointer (free up memory)
			q.head.Store(next)

			select {
			case q.out <- value:
			case <-q.discard:
				return
			}

			// help go gc
			next.value = zero
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			// Double-check condition after acquiring lock
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns a receive-only channel for consuming from the mailbox.
// The channel is closed once the mailbox is closed and drained.
func (q *Mailbox[T]) Recv() <-chan T {
	return q.out
}

// Close closes the mailbox, preventing further writes.
// Any items already in the mailbox will still be delivered to the consumer.
func (q *Mailbox[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// Discard closes the mailbox and drops all items not yet delivered.
// It returns once the delivery goroutine has exited.
func (q *Mailbox[T]) Discard() {
	q.closed.Store(true)
	q.discardOnce.Do(func() {
		close(q.discard)
	})
	q.wake()
	q.consumer.Wait()
}

// IsClosed returns true if the mailbox is closed.
func (q *Mailbox[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the number of items in the mailbox.
// This is O(n) and should only be used for debugging.
func (q *Mailbox[T]) Len() int {
	count := 0
	current := q.head.Load()

	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}

	return count
}
