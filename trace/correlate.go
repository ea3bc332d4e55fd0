// ABOUTME: Correlation index linking locally-submitted message IDs to server-reported task IDs.
// ABOUTME: Prefers explicit message_id->task_id mapping; keeps a pending-claim fallback for legacy APIs.

package trace

import "sync"

// CorrelationIndex answers "which task corresponds to a message we sent?".
// Entries are written once at submission-acknowledgement time and never
// mutated or deleted for the life of the session. Lookups are safe at any
// point: the stream may report a task before, during, or after the
// submission acknowledgement returns.
type CorrelationIndex struct {
	mu        sync.Mutex
	taskByMsg map[string]string
	localTask map[string]bool
	pending   []string // message IDs awaiting heuristic attribution
}

// NewCorrelationIndex returns an empty index.
func NewCorrelationIndex() *CorrelationIndex {
	return &CorrelationIndex{
		taskByMsg: make(map[string]string),
		localTask: make(map[string]bool),
	}
}

// RecordSubmission stores the explicit message_id -> task_id mapping
// returned by the submission API. This is the prescribed correlation
// mechanism; it is exact under concurrent submissions.
func (x *CorrelationIndex) RecordSubmission(messageID, taskID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.taskByMsg[messageID] = taskID
	x.localTask[taskID] = true
}

// RecordPending registers a submission acknowledged without a task or
// message identifier. It enables the legacy first-unclaimed-task heuristic:
// the next task observed on the stream that no submission has claimed is
// attributed to this message. Fragile under concurrent submissions; only
// used when the API returns no message_id.
func (x *CorrelationIndex) RecordPending(messageID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.pending = append(x.pending, messageID)
}

// TaskFor returns the task ID recorded for a message, or "" when the mapping
// is not (yet) known.
func (x *CorrelationIndex) TaskFor(messageID string) string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.taskByMsg[messageID]
}

// Attribute reports whether the given task originated from a local
// submission. Called by the store exactly once, at task first-sight. When an
// explicit mapping exists it is authoritative; otherwise the oldest pending
// legacy submission (if any) claims the task.
func (x *CorrelationIndex) Attribute(taskID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.localTask[taskID] {
		return true
	}
	if len(x.pending) > 0 {
		msgID := x.pending[0]
		x.pending = x.pending[1:]
		x.taskByMsg[msgID] = taskID
		x.localTask[taskID] = true
		return true
	}
	return false
}
