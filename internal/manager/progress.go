package manager

import (
	"sync"
	"time"
)

const defaultProgressBuffer = 64

// Event is one best-effort progress message. Events are advisory for UIs;
// losing one never affects durable state.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans progress events out to any number of subscribers. Slow
// subscribers drop events rather than block the workflow.
type Broadcaster struct {
	mu         sync.Mutex
	subs       map[chan Event]struct{}
	bufferSize int
}

// NewBroadcaster builds a broadcaster whose subscriber channels buffer
// bufferSize events each.
func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultProgressBuffer
	}
	return &Broadcaster{
		subs:       make(map[chan Event]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new listener. The returned cancel func must be called
// to release the subscription; the channel is closed by cancel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the current number of listeners.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
