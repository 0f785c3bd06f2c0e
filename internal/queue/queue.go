package queue

import "context"

// TaskQueue is an unbounded, multi-producer multi-consumer queue of
// Tasks. Send never blocks the caller on a full buffer (there is no fixed
// capacity) and Receive blocks until a task is available or ctx is
// cancelled. Safe for concurrent use by any number of senders and
// receivers.
type TaskQueue struct {
	in     chan Task
	out    chan Task
	closed chan struct{}
}

// New starts the queue's internal buffering goroutine and returns a ready
// to use TaskQueue.
func New() *TaskQueue {
	q := &TaskQueue{
		in:     make(chan Task),
		out:    make(chan Task),
		closed: make(chan struct{}),
	}
	go q.run()
	return q
}

// run bridges in and out over a growing slice buffer, so Send never blocks
// on a slow or absent receiver.
func (q *TaskQueue) run() {
	var buf []Task
	for {
		if len(buf) == 0 {
			select {
			case t, ok := <-q.in:
				if !ok {
					close(q.out)
					return
				}
				buf = append(buf, t)
			case <-q.closed:
				close(q.out)
				return
			}
			continue
		}

		select {
		case t, ok := <-q.in:
			if !ok {
				close(q.out)
				return
			}
			buf = append(buf, t)
		case q.out <- buf[0]:
			buf = buf[1:]
		case <-q.closed:
			close(q.out)
			return
		}
	}
}

// Send enqueues t. It never blocks on queue depth; it only blocks as long
// as it takes the internal goroutine to accept the value.
func (q *TaskQueue) Send(t Task) {
	select {
	case q.in <- t:
	case <-q.closed:
	}
}

// Receive blocks until a task is available, ctx is cancelled, or the queue
// is closed. ok is false in the latter two cases.
func (q *TaskQueue) Receive(ctx context.Context) (Task, bool) {
	select {
	case t, ok := <-q.out:
		return t, ok
	case <-ctx.Done():
		return Task{}, false
	}
}

// Close shuts the queue down: tasks still buffered are dropped, subsequent
// Send calls are no-ops, and Receive calls return immediately with ok=false.
func (q *TaskQueue) Close() {
	close(q.closed)
}
