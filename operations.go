package webrtc

import (
	"container/list"
	"sync"
)

// operation is one unit of work run on the PeerConnection's single actor
// goroutine, serialized FIFO.
type operation func()

// operations is a FIFO queue of pending operations, drained by exactly one
// goroutine at a time. Enqueuing from any goroutine is safe; running the
// queue is the caller's job (PeerConnection owns the single drain
// goroutine).
type operations struct {
	mu      sync.Mutex
	ops     *list.List
	busyCh  chan struct{}
	closed  bool
}

func newOperations() *operations {
	return &operations{
		ops:    list.New(),
		busyCh: make(chan struct{}, 1),
	}
}

// enqueue appends op to the queue and starts the drain goroutine if one
// isn't already running.
func (o *operations) enqueue(op operation) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()

		return
	}
	o.ops.PushBack(op)
	running := len(o.busyCh) > 0
	if !running {
		o.busyCh <- struct{}{}
	}
	o.mu.Unlock()

	if !running {
		go o.drain()
	}
}

func (o *operations) drain() {
	defer func() {
		o.mu.Lock()
		<-o.busyCh
		o.mu.Unlock()
	}()

	for {
		o.mu.Lock()
		front := o.ops.Front()
		if front == nil {
			o.mu.Unlock()

			return
		}
		o.ops.Remove(front)
		o.mu.Unlock()

		front.Value.(operation)()
	}
}

// done reports whether the queue is currently empty and idle. It exists for
// tests that need to synchronize on "all enqueued operations have run".
func (o *operations) done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.ops.Len() == 0 && len(o.busyCh) == 0
}

// close marks the queue closed: further enqueue calls are no-ops. Already
// queued operations still run to completion.
func (o *operations) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
