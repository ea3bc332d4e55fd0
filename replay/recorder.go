// ABOUTME: Append-only NDJSON recorder for normalized stage events.
// ABOUTME: Captured sessions can be inspected offline or turned into replay scenarios.

package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/spyglass/trace"
)

// RecordEntry is one line in the NDJSON capture file.
type RecordEntry struct {
	ID          string         `json:"id"`
	CapturedAt  string         `json:"captured_at"`
	TaskID      string         `json:"task_id"`
	ThoughtID   string         `json:"thought_id"`
	Lane        string         `json:"lane,omitempty"`
	StageName   string         `json:"stage_name,omitempty"`
	Description string         `json:"description,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Recorder appends normalized stage events to an NDJSON file. Each entry gets
// a ULID so captures interleave sortably across sessions.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	closed bool
}

// NewRecorder opens (or creates) the capture file for appending.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	return &Recorder{file: f, enc: json.NewEncoder(f)}, nil
}

// Record appends one event. Safe for concurrent use; a write failure is
// returned but does not poison the recorder.
func (r *Recorder) Record(ev trace.StageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder is closed")
	}

	entry := RecordEntry{
		ID:          ulid.Make().String(),
		CapturedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		TaskID:      ev.TaskID,
		ThoughtID:   ev.ThoughtID,
		Lane:        string(ev.Lane),
		StageName:   ev.StageName,
		Description: ev.TaskDescription,
		Payload:     ev.Payload,
	}
	if err := r.enc.Encode(entry); err != nil {
		return fmt.Errorf("writing capture entry: %w", err)
	}
	return nil
}

// Close flushes and closes the capture file. Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadCapture loads all entries from a capture file, in order.
func ReadCapture(path string) ([]RecordEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	defer f.Close()

	var entries []RecordEntry
	dec := json.NewDecoder(f)
	for dec.More() {
		var e RecordEntry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decoding capture entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
