// ABOUTME: Event classifier and normalizer turning raw SSE frames into canonical stage events.
// ABOUTME: Adapts both step_update payload forms (events[] and updated_thoughts[]) behind one record shape.

package trace

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389-research/spyglass/sse"
)

// Stream event types recognized on the inbound SSE connection.
const (
	EventConnected    = "connected"
	EventThoughtStart = "thought_start"
	EventStepUpdate   = "step_update"
	EventKeepalive    = "keepalive"
	EventError        = "error"
)

// StageEvent is the canonical internal record produced by normalization.
// One stream frame may normalize to zero or more stage events.
type StageEvent struct {
	TaskID          string
	ThoughtID       string
	Lane            Lane   // LaneNone when the step name did not classify
	StageName       string // verbatim stage or step name from the payload
	TaskDescription string
	Timestamp       time.Time // zero when the payload carried none
	Payload         map[string]any
}

// Signal marks stream-level frames that carry no task data.
type Signal int

const (
	SignalNone Signal = iota
	SignalConnected
	SignalKeepalive
	SignalError
)

// Normalized is the result of classifying one frame.
type Normalized struct {
	Signal       Signal
	ErrorMessage string // set for SignalError
	Events       []StageEvent
}

// NormalizeFrame classifies a frame and produces canonical stage events.
// A non-nil error means the frame was dropped (bad JSON, unattributable
// payload); the error is for logging only and must not halt ingestion.
func NormalizeFrame(f sse.Frame) (Normalized, error) {
	switch f.Event {
	case EventConnected:
		return Normalized{Signal: SignalConnected}, nil

	case EventKeepalive:
		return Normalized{Signal: SignalKeepalive}, nil

	case EventError:
		return normalizeError(f.Data), nil

	case EventThoughtStart:
		return normalizeThoughtStart(f.Data)

	case EventStepUpdate:
		return normalizeStepUpdate(f.Data)

	default:
		// Unknown event types are skipped without error.
		return Normalized{}, nil
	}
}

// normalizeError extracts the message from an error frame. The payload is
// JSON {"message": ...} but free-text data is tolerated.
func normalizeError(data string) Normalized {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &body); err == nil && body.Message != "" {
		return Normalized{Signal: SignalError, ErrorMessage: body.Message}
	}
	return Normalized{Signal: SignalError, ErrorMessage: data}
}

// normalizeThoughtStart produces the synthetic THOUGHT_START stage event that
// carries the task description.
func normalizeThoughtStart(data string) (Normalized, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return Normalized{}, fmt.Errorf("thought_start payload: %w", err)
	}

	ev, ok := eventFromEntry(raw, stringField(raw, "task_description"))
	if !ok {
		return Normalized{}, fmt.Errorf("thought_start payload missing thought_id and task_id")
	}
	ev.Lane = LaneThoughtStart
	ev.StageName = string(LaneThoughtStart)
	return Normalized{Events: []StageEvent{ev}}, nil
}

// normalizeStepUpdate handles the primary payload. The two observed wire
// forms are decoded as an explicit union: the discrete events[] form names
// its stage directly, while the updated_thoughts[] form carries a
// fine-grained current_step that must pass through the lane classifier.
func normalizeStepUpdate(data string) (Normalized, error) {
	var body struct {
		Events          []map[string]any `json:"events"`
		UpdatedThoughts []map[string]any `json:"updated_thoughts"`
	}
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return Normalized{}, fmt.Errorf("step_update payload: %w", err)
	}

	var out []StageEvent
	for _, entry := range body.Events {
		ev, ok := eventFromEntry(entry, stringField(entry, "task_description"))
		if !ok {
			continue
		}
		stage := firstStringField(entry, "stage", "step_point", "step")
		ev.StageName = stage
		ev.Lane = ClassifyStep(stage)
		out = append(out, ev)
	}
	for _, entry := range body.UpdatedThoughts {
		ev, ok := eventFromEntry(entry, stringField(entry, "task_description"))
		if !ok {
			continue
		}
		step := stringField(entry, "current_step")
		ev.StageName = step
		ev.Lane = ClassifyStep(step)
		out = append(out, ev)
	}

	return Normalized{Events: out}, nil
}

// eventFromEntry builds a StageEvent skeleton from one payload entry. Entries
// lacking both thought_id and task_id cannot be attributed and are dropped.
func eventFromEntry(entry map[string]any, description string) (StageEvent, bool) {
	taskID := stringField(entry, "task_id")
	thoughtID := stringField(entry, "thought_id")
	if taskID == "" && thoughtID == "" {
		return StageEvent{}, false
	}

	return StageEvent{
		TaskID:          taskID,
		ThoughtID:       thoughtID,
		TaskDescription: description,
		Timestamp:       timestampField(entry),
		Payload:         canonicalizePayload(entry),
	}, true
}

// payloadAliases maps legacy field names to their canonical spelling. The
// wire format drifted across server versions; normalization reconciles the
// variants here so the store never branches on them.
var payloadAliases = map[string]string{
	"action_reasoning": "action_rationale",
	"csdma":            "csdma_output",
}

// canonicalizePayload copies an entry, rewriting aliased field names to
// their canonical form. A canonical key already present wins over its alias.
func canonicalizePayload(entry map[string]any) map[string]any {
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		if canonical, ok := payloadAliases[k]; ok {
			if _, exists := entry[canonical]; !exists {
				out[canonical] = v
			}
			continue
		}
		out[k] = v
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func firstStringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringField(m, k); v != "" {
			return v
		}
	}
	return ""
}

func timestampField(m map[string]any) time.Time {
	s := stringField(m, "timestamp")
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
