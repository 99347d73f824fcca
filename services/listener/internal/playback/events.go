package playback

import "sync"

type EventKind int

const (
	// EventState is sent on every state transition.
	EventState EventKind = iota
	// EventProgress is sent when a chunk finishes and the cursor moves.
	EventProgress
	// EventQuizReady is sent when a quiz (possibly a placeholder) opens.
	EventQuizReady
	// EventAnswered carries feedback for the first answer to a quiz.
	EventAnswered
	// EventNotice carries a dismissible error in Err.
	EventNotice
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventProgress:
		return "progress"
	case EventQuizReady:
		return "quiz_ready"
	case EventAnswered:
		return "answered"
	case EventNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Event is delivered to Options.OnEvent. Snapshot is taken at the moment
// the event was raised.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Err      error
}

// eventQueue delivers events in order on its own goroutine so observers
// never run under the coordinator lock and may call back into it.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

func newEventQueue(fn func(Event)) *eventQueue {
	q := &eventQueue{wake: make(chan struct{}, 1), done: make(chan struct{})}
	go q.loop(fn)
	return q
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) loop(fn func(Event)) {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			batch := q.pending
			q.pending = nil
			closed := q.closed
			q.mu.Unlock()
			for _, ev := range batch {
				fn(ev)
			}
			if len(batch) == 0 {
				if closed {
					return
				}
				break
			}
		}
	}
}

// close delivers what is queued and stops the loop.
func (q *eventQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}
