package manager

import "sync"

// StreamKind tags a StreamEvent.
type StreamKind int

const (
	StreamToken StreamKind = iota
	StreamDone
	StreamError
	StreamCancelled
)

func (k StreamKind) String() string {
	switch k {
	case StreamToken:
		return "token"
	case StreamDone:
		return "done"
	case StreamError:
		return "error"
	case StreamCancelled:
		return "cancelled"
	}
	return "unknown"
}

// StreamEvent is one item of a generation stream. Token events carry Text;
// the stream ends with exactly one Done, Error or Cancelled event unless the
// session is closed first.
type StreamEvent struct {
	Kind  StreamKind
	Text  string
	Usage Usage
	Err   error
}

// Usage is the token accounting of one reply.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// eventQueue is an unbounded FIFO between the generation goroutine, which
// pushes while holding the session lock, and a pump that feeds the caller.
type eventQueue struct {
	mu     sync.Mutex
	items  []StreamEvent
	closed bool
	wake   chan struct{} // cap 1
	gone   chan struct{} // closed when the consumer is abandoned
	once   sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1), gone: make(chan struct{})}
}

func (q *eventQueue) push(e StreamEvent) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, e)
	}
	q.mu.Unlock()
	q.signal()
}

// close marks the end of the stream; pending items are still delivered.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// abandon drops pending items and ends the stream without blocking.
func (q *eventQueue) abandon() {
	q.once.Do(func() { close(q.gone) })
	q.close()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued events to out and closes out at the end.
func (q *eventQueue) pump(out chan<- StreamEvent) {
	defer close(out)
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range batch {
			select {
			case out <- e:
			case <-q.gone:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		select {
		case <-q.wake:
		case <-q.gone:
			return
		}
	}
}
