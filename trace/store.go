// ABOUTME: Authoritative in-memory model of tasks, thoughts, and stage progress reconstructed from the stream.
// ABOUTME: Applies normalized stage events as state transitions with idempotent replay and bounded retention.

package trace

import (
	"sync"
	"time"
)

// DefaultPalette is the fixed finite palette cycled through for task color
// tags. Purely cosmetic; never used for identity.
var DefaultPalette = []string{
	"red", "orange", "yellow", "green", "teal", "blue", "purple", "magenta",
}

// DefaultSentinels are the action-executed values that complete a task when
// observed on a terminal ACTION_RESULT stage. The server-side terminal
// outcome set is not fully observable, so the list is configurable.
var DefaultSentinels = []string{"task_complete", "task_reject"}

// StoreConfig configures a Store. Zero values select defaults.
type StoreConfig struct {
	// Palette overrides DefaultPalette.
	Palette []string

	// Sentinels overrides DefaultSentinels.
	Sentinels []string

	// MaxTasks caps retained tasks. When exceeded, completed tasks are
	// evicted oldest-first by first-observed time. 0 means unbounded.
	MaxTasks int

	// Index, when set, is consulted at task first-sight to flag tasks that
	// originated from a local submission.
	Index *CorrelationIndex

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// StageRecord is one observed stage of a thought, keyed by its verbatim
// stage name. Re-observing a stage (recursive retry) overwrites the record.
type StageRecord struct {
	Name       string
	Lane       Lane
	Payload    map[string]any
	ObservedAt time.Time
}

type thought struct {
	id           string
	stages       map[string]StageRecord
	reached      map[Lane]bool
	currentLane  Lane
	currentStage string
	lastPayload  map[string]any
}

type task struct {
	id              string
	description     string
	color           string
	local           bool
	completed       bool
	firstObservedAt time.Time
	thoughtOrder    []string
	thoughts        map[string]*thought
}

// Store is the task/thought reconstruction store. It is mutated only through
// Apply; consumers read deep-copied snapshots or subscribe for updates.
type Store struct {
	mu          sync.Mutex
	cfg         StoreConfig
	tasks       map[string]*task
	taskOrder   []string
	colorCursor int
	emitter     *Emitter
}

// NewStore creates a Store with the given configuration.
func NewStore(cfg StoreConfig) *Store {
	if len(cfg.Palette) == 0 {
		cfg.Palette = DefaultPalette
	}
	if len(cfg.Sentinels) == 0 {
		cfg.Sentinels = DefaultSentinels
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		cfg:     cfg,
		tasks:   make(map[string]*task),
		emitter: NewEmitter(),
	}
}

// Subscribe registers a channel receiving store updates.
func (s *Store) Subscribe() <-chan Update {
	return s.emitter.Subscribe()
}

// Unsubscribe removes a subscriber channel.
func (s *Store) Unsubscribe(ch <-chan Update) {
	s.emitter.Unsubscribe(ch)
}

// Close closes the store's update emitter.
func (s *Store) Close() {
	s.emitter.Close()
}

// Apply records one normalized stage event. It is safe to replay: the same
// event for the same (task, thought, stage) overwrites the stored payload
// without duplicating stage entries or regressing reached lanes. Stage
// arrival order is unconstrained; a thought may jump straight to a late lane
// when earlier events were lost.
func (s *Store) Apply(ev StageEvent) {
	s.mu.Lock()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = s.cfg.Now()
	}

	taskID := ev.TaskID
	if taskID == "" {
		// Attribution by thought alone: find the task already owning this
		// thought. Unplaceable events are dropped.
		taskID = s.taskOwning(ev.ThoughtID)
		if taskID == "" {
			s.mu.Unlock()
			return
		}
	}

	tk, created := s.lookupOrCreateTask(taskID, ts)

	var updates []Update
	if created {
		updates = append(updates, Update{Kind: UpdateTaskCreated, TaskID: taskID})
	}

	// Backfill the description: task creation is usually triggered by a
	// stage event without metadata, and only thought_start carries it.
	if tk.description == "" && ev.TaskDescription != "" {
		tk.description = ev.TaskDescription
		updates = append(updates, Update{Kind: UpdateDescription, TaskID: taskID})
	}

	if ev.ThoughtID != "" {
		th, ok := tk.thoughts[ev.ThoughtID]
		if !ok {
			th = &thought{
				id:      ev.ThoughtID,
				stages:  make(map[string]StageRecord),
				reached: make(map[Lane]bool),
			}
			tk.thoughts[ev.ThoughtID] = th
			tk.thoughtOrder = append(tk.thoughtOrder, ev.ThoughtID)
		}

		if ev.StageName != "" {
			th.stages[ev.StageName] = StageRecord{
				Name:       ev.StageName,
				Lane:       ev.Lane,
				Payload:    ev.Payload,
				ObservedAt: ts,
			}
		}
		if ev.Lane != LaneNone {
			th.reached[ev.Lane] = true
			th.currentLane = ev.Lane
		}
		th.currentStage = ev.StageName
		th.lastPayload = ev.Payload

		updates = append(updates, Update{
			Kind:      UpdateStage,
			TaskID:    taskID,
			ThoughtID: ev.ThoughtID,
			Lane:      ev.Lane,
		})

		// Completion is evaluated per event: any thought reaching a
		// terminal outcome completes the whole task, exactly once. Late
		// data for a completed task is still recorded above but never
		// reopens the flag.
		if !tk.completed && ev.Lane == LaneActionResult && s.isSentinel(ev.Payload) {
			tk.completed = true
			updates = append(updates, Update{Kind: UpdateTaskCompleted, TaskID: taskID})
		}
	}

	s.evictLocked()
	s.mu.Unlock()

	for _, u := range updates {
		s.emitter.Emit(u)
	}
}

// taskOwning returns the ID of the task holding the given thought, or "".
// Caller must hold s.mu.
func (s *Store) taskOwning(thoughtID string) string {
	if thoughtID == "" {
		return ""
	}
	for _, id := range s.taskOrder {
		if _, ok := s.tasks[id].thoughts[thoughtID]; ok {
			return id
		}
	}
	return ""
}

// lookupOrCreateTask returns the task for id, creating it lazily at first
// sight: the next palette color is assigned round-robin and the correlation
// index is consulted for local origin. Caller must hold s.mu.
func (s *Store) lookupOrCreateTask(id string, ts time.Time) (*task, bool) {
	if tk, ok := s.tasks[id]; ok {
		return tk, false
	}

	tk := &task{
		id:              id,
		color:           s.cfg.Palette[s.colorCursor%len(s.cfg.Palette)],
		firstObservedAt: ts,
		thoughts:        make(map[string]*thought),
	}
	s.colorCursor++
	if s.cfg.Index != nil {
		tk.local = s.cfg.Index.Attribute(id)
	}
	s.tasks[id] = tk
	s.taskOrder = append(s.taskOrder, id)
	return tk, true
}

// isSentinel reports whether the payload's action-executed field names a
// terminal outcome.
func (s *Store) isSentinel(payload map[string]any) bool {
	action, _ := payload["action_executed"].(string)
	if action == "" {
		return false
	}
	for _, sentinel := range s.cfg.Sentinels {
		if action == sentinel {
			return true
		}
	}
	return false
}

// evictLocked drops completed tasks, oldest first, until the retained count
// is within MaxTasks. In-flight tasks are never evicted. Caller must hold s.mu.
func (s *Store) evictLocked() {
	if s.cfg.MaxTasks <= 0 || len(s.taskOrder) <= s.cfg.MaxTasks {
		return
	}
	kept := s.taskOrder[:0]
	over := len(s.taskOrder) - s.cfg.MaxTasks
	for _, id := range s.taskOrder {
		if over > 0 && s.tasks[id].completed {
			delete(s.tasks, id)
			over--
			continue
		}
		kept = append(kept, id)
	}
	s.taskOrder = kept
}

// TaskSnapshot is a read-only copy of one task's reconstructed state.
type TaskSnapshot struct {
	ID                string
	Description       string
	Color             string
	LocallyOriginated bool
	Completed         bool
	FirstObservedAt   time.Time
	Thoughts          []ThoughtSnapshot
}

// ThoughtSnapshot is a read-only copy of one thought's progress.
type ThoughtSnapshot struct {
	ID           string
	LanesReached []Lane // canonical order
	CurrentLane  Lane
	CurrentStage string
	Stages       map[string]StageRecord
	LastPayload  map[string]any
}

// Snapshot returns deep copies of all retained tasks in first-observed
// order. Mutating the result never affects store state.
func (s *Store) Snapshot() []TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskSnapshot, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		out = append(out, snapshotTask(s.tasks[id]))
	}
	return out
}

// Task returns a snapshot of one task by ID.
func (s *Store) Task(id string) (TaskSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk, ok := s.tasks[id]
	if !ok {
		return TaskSnapshot{}, false
	}
	return snapshotTask(tk), true
}

func snapshotTask(tk *task) TaskSnapshot {
	snap := TaskSnapshot{
		ID:                tk.id,
		Description:       tk.description,
		Color:             tk.color,
		LocallyOriginated: tk.local,
		Completed:         tk.completed,
		FirstObservedAt:   tk.firstObservedAt,
		Thoughts:          make([]ThoughtSnapshot, 0, len(tk.thoughtOrder)),
	}
	for _, tid := range tk.thoughtOrder {
		th := tk.thoughts[tid]
		ts := ThoughtSnapshot{
			ID:           th.id,
			CurrentLane:  th.currentLane,
			CurrentStage: th.currentStage,
			LastPayload:  copyPayload(th.lastPayload),
			Stages:       make(map[string]StageRecord, len(th.stages)),
		}
		for _, lane := range CanonicalLanes {
			if th.reached[lane] {
				ts.LanesReached = append(ts.LanesReached, lane)
			}
		}
		for name, rec := range th.stages {
			rec.Payload = copyPayload(rec.Payload)
			ts.Stages[name] = rec
		}
		snap.Thoughts = append(snap.Thoughts, ts)
	}
	return snap
}

func copyPayload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
