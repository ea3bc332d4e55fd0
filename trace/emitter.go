// ABOUTME: Non-blocking update emitter so consumers can observe store mutations in real time.
// ABOUTME: Subscribe/emit/unsubscribe over buffered channels; slow subscribers drop updates rather than block.

package trace

import "sync"

// UpdateKind discriminates the type of store update.
type UpdateKind string

const (
	UpdateTaskCreated   UpdateKind = "task_created"
	UpdateDescription   UpdateKind = "description_set"
	UpdateStage         UpdateKind = "stage_recorded"
	UpdateTaskCompleted UpdateKind = "task_completed"
)

// Update describes one store mutation. Consumers needing the full state
// should read a snapshot; updates are a change signal, not a data carrier.
type Update struct {
	Kind      UpdateKind
	TaskID    string
	ThoughtID string
	Lane      Lane
}

// Emitter delivers store updates to subscribed channels.
type Emitter struct {
	mu          sync.RWMutex
	subscribers []chan Update
	closed      bool
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers a new subscriber channel and returns it.
// The channel is buffered to reduce the likelihood of dropped updates.
func (e *Emitter) Subscribe() <-chan Update {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Update, 64)
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (e *Emitter) Unsubscribe(ch <-chan Update) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, sub := range e.subscribers {
		if (<-chan Update)(sub) == ch {
			close(sub)
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			return
		}
	}
}

// Emit sends an update to all subscribers. Non-blocking: if a subscriber's
// buffer is full the update is dropped for that subscriber, keeping the
// ingestion path free of unbounded stalls.
func (e *Emitter) Emit(u Update) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return
	}
	for _, ch := range e.subscribers {
		select {
		case ch <- u:
		default:
		}
	}
}

// Close closes the emitter and all subscriber channels.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for _, ch := range e.subscribers {
		close(ch)
	}
	e.subscribers = nil
}
