package odb

import "sync"

// txQueue serializes writable transactions in strict FIFO order: each
// writer waits for every earlier writer to settle before it may start.
// The storage engines already enforce writer exclusivity, but their
// wakeup order is unspecified; the queue pins it down.
type txQueue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// enter blocks until all earlier writers have settled and returns this
// writer's settle func. Settling twice is harmless: only the first call
// releases the next writer.
func (q *txQueue) enter() (settle func()) {
	q.mu.Lock()
	prev := q.tail
	next := make(chan struct{})
	q.tail = next
	q.mu.Unlock()

	if prev != nil {
		<-prev
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(next)
		})
	}
}
