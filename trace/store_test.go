// ABOUTME: Tests for the task/thought reconstruction store.
// ABOUTME: Covers lazy creation, monotonic lanes, idempotent replay, completion, retention, and correlation.

package trace

import (
	"testing"
	"time"
)

func stageEvent(taskID, thoughtID string, lane Lane, payload map[string]any) StageEvent {
	name := string(lane)
	if lane == LaneNone {
		name = "unclassified_step"
	}
	return StageEvent{
		TaskID:    taskID,
		ThoughtID: thoughtID,
		Lane:      lane,
		StageName: name,
		Payload:   payload,
	}
}

func TestLazyTaskCreationAndColorRoundRobin(t *testing.T) {
	s := NewStore(StoreConfig{Palette: []string{"red", "green"}})

	s.Apply(stageEvent("t1", "th1", LaneDMAResults, nil))
	s.Apply(stageEvent("t2", "th2", LaneDMAResults, nil))
	s.Apply(stageEvent("t3", "th3", LaneDMAResults, nil))

	snaps := s.Snapshot()
	if len(snaps) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(snaps))
	}
	colors := []string{snaps[0].Color, snaps[1].Color, snaps[2].Color}
	want := []string{"red", "green", "red"}
	for i := range want {
		if colors[i] != want[i] {
			t.Errorf("task %d color = %q, want %q (round-robin by arrival order)", i, colors[i], want[i])
		}
	}
}

func TestLanesReachedMonotonic(t *testing.T) {
	s := NewStore(StoreConfig{})

	// Out-of-order arrival: a late lane first, then an early one.
	s.Apply(stageEvent("t1", "th1", LaneConscienceResult, nil))
	s.Apply(stageEvent("t1", "th1", LaneSnapshotContext, nil))

	snap, _ := s.Task("t1")
	th := snap.Thoughts[0]
	if len(th.LanesReached) != 2 {
		t.Fatalf("expected 2 lanes reached, got %v", th.LanesReached)
	}
	// Canonical order in the snapshot regardless of arrival order.
	if th.LanesReached[0] != LaneSnapshotContext || th.LanesReached[1] != LaneConscienceResult {
		t.Errorf("lanes not in canonical order: %v", th.LanesReached)
	}

	// Re-applying an already-seen lane never shrinks the set.
	s.Apply(stageEvent("t1", "th1", LaneSnapshotContext, nil))
	snap, _ = s.Task("t1")
	if len(snap.Thoughts[0].LanesReached) != 2 {
		t.Errorf("lanes reached shrank on replay: %v", snap.Thoughts[0].LanesReached)
	}
}

func TestIdempotentReplay(t *testing.T) {
	s := NewStore(StoreConfig{})
	ev := stageEvent("t1", "th1", LaneActionResult, map[string]any{"action_executed": "task_complete"})

	s.Apply(ev)
	first, _ := s.Task("t1")

	s.Apply(ev)
	second, _ := s.Task("t1")

	if len(second.Thoughts) != 1 || len(second.Thoughts[0].Stages) != len(first.Thoughts[0].Stages) {
		t.Errorf("replay duplicated stage entries")
	}
	if !first.Completed || !second.Completed {
		t.Errorf("completed flag changed across replay: %v -> %v", first.Completed, second.Completed)
	}
}

func TestDescriptionBackfillAfterStepUpdate(t *testing.T) {
	s := NewStore(StoreConfig{})

	s.Apply(stageEvent("t1", "th1", LaneDMAResults, map[string]any{"dma_output": "x"}))
	snap, _ := s.Task("t1")
	if snap.Description != "" {
		t.Fatalf("expected empty description before thought_start, got %q", snap.Description)
	}

	s.Apply(StageEvent{
		TaskID:          "t1",
		ThoughtID:       "th1",
		Lane:            LaneThoughtStart,
		StageName:       string(LaneThoughtStart),
		TaskDescription: "Answer ethics question",
	})

	snap, _ = s.Task("t1")
	if snap.Description != "Answer ethics question" {
		t.Errorf("description not backfilled: %q", snap.Description)
	}
	// Existing stage data untouched by the metadata attachment.
	if _, ok := snap.Thoughts[0].Stages["DMA_RESULTS"]; !ok {
		t.Errorf("stage data lost on backfill: %v", snap.Thoughts[0].Stages)
	}
}

func TestCompletionSentinelAndNoReopen(t *testing.T) {
	s := NewStore(StoreConfig{})

	s.Apply(stageEvent("t1", "th1", LaneActionResult, map[string]any{"action_executed": "speak"}))
	snap, _ := s.Task("t1")
	if snap.Completed {
		t.Fatal("non-sentinel action must not complete the task")
	}

	s.Apply(stageEvent("t1", "th1", LaneActionResult, map[string]any{"action_executed": "task_complete"}))
	snap, _ = s.Task("t1")
	if !snap.Completed {
		t.Fatal("sentinel action should complete the task")
	}

	// Late-arriving data is recorded but never reopens completion.
	s.Apply(stageEvent("t1", "th2", LaneDMAResults, map[string]any{"dma_output": "late"}))
	snap, _ = s.Task("t1")
	if !snap.Completed {
		t.Error("completed flag reopened by late data")
	}
	if len(snap.Thoughts) != 2 {
		t.Errorf("late thought not recorded: %d thoughts", len(snap.Thoughts))
	}
}

func TestCompletionByAnyThought(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Apply(stageEvent("t1", "th1", LaneDMAResults, nil))
	s.Apply(stageEvent("t1", "th2", LaneActionResult, map[string]any{"action_executed": "task_reject"}))

	snap, _ := s.Task("t1")
	if !snap.Completed {
		t.Error("any thought reaching a terminal outcome completes the whole task")
	}
}

func TestConfigurableSentinels(t *testing.T) {
	s := NewStore(StoreConfig{Sentinels: []string{"task_halt"}})
	s.Apply(stageEvent("t1", "th1", LaneActionResult, map[string]any{"action_executed": "task_complete"}))
	if snap, _ := s.Task("t1"); snap.Completed {
		t.Error("default sentinel should not apply when overridden")
	}
	s.Apply(stageEvent("t1", "th1", LaneActionResult, map[string]any{"action_executed": "task_halt"}))
	if snap, _ := s.Task("t1"); !snap.Completed {
		t.Error("configured sentinel should complete the task")
	}
}

func TestCorrelationAttribution(t *testing.T) {
	idx := NewCorrelationIndex()
	idx.RecordSubmission("m1", "t1")

	s := NewStore(StoreConfig{Index: idx})
	s.Apply(stageEvent("t1", "th1", LaneDMAResults, nil))
	s.Apply(stageEvent("t2", "th2", LaneDMAResults, nil))

	local, _ := s.Task("t1")
	remote, _ := s.Task("t2")
	if !local.LocallyOriginated {
		t.Error("t1 should be locally originated")
	}
	if remote.LocallyOriginated {
		t.Error("t2 should not be locally originated")
	}
}

func TestEndToEndScenario(t *testing.T) {
	// Submission ack arrives first: m1 -> t1.
	idx := NewCorrelationIndex()
	idx.RecordSubmission("m1", "t1")
	s := NewStore(StoreConfig{Index: idx})

	// A step_update for t1 arrives before any thought_start.
	s.Apply(stageEvent("t1", "th1", LaneDMAResults, nil))
	snap, ok := s.Task("t1")
	if !ok {
		t.Fatal("task not created from step_update")
	}
	if snap.Description != "" || !snap.LocallyOriginated {
		t.Fatalf("unexpected initial state: %+v", snap)
	}

	// thought_start backfills the description.
	s.Apply(StageEvent{
		TaskID: "t1", ThoughtID: "th1",
		Lane: LaneThoughtStart, StageName: string(LaneThoughtStart),
		TaskDescription: "Answer ethics question",
	})
	snap, _ = s.Task("t1")
	if snap.Description != "Answer ethics question" {
		t.Fatalf("description not backfilled: %q", snap.Description)
	}

	// Terminal action completes the task.
	s.Apply(stageEvent("t1", "th1", LaneActionResult, map[string]any{"action_executed": "task_complete"}))
	snap, _ = s.Task("t1")
	if !snap.Completed {
		t.Error("task should be completed")
	}
	if idx.TaskFor("m1") != "t1" {
		t.Errorf("correlation lookup broken: %q", idx.TaskFor("m1"))
	}
}

func TestRetentionEvictsOldestCompleted(t *testing.T) {
	s := NewStore(StoreConfig{MaxTasks: 2})

	complete := map[string]any{"action_executed": "task_complete"}
	s.Apply(stageEvent("t1", "th1", LaneActionResult, complete))
	s.Apply(stageEvent("t2", "th2", LaneDMAResults, nil)) // in flight, never evicted
	s.Apply(stageEvent("t3", "th3", LaneActionResult, complete))

	snaps := s.Snapshot()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 retained tasks, got %d", len(snaps))
	}
	if _, ok := s.Task("t1"); ok {
		t.Error("oldest completed task should be evicted")
	}
	if _, ok := s.Task("t2"); !ok {
		t.Error("in-flight task must never be evicted")
	}
}

func TestThoughtOnlyAttributionFallsBackToOwningTask(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Apply(stageEvent("t1", "th1", LaneDMAResults, nil))

	// Later event carries only the thought id.
	s.Apply(StageEvent{ThoughtID: "th1", Lane: LaneConscienceResult, StageName: string(LaneConscienceResult)})

	snap, _ := s.Task("t1")
	if len(snap.Thoughts[0].LanesReached) != 2 {
		t.Errorf("thought-only event not attributed: %v", snap.Thoughts[0].LanesReached)
	}

	// Unplaceable events are dropped, not crashed on.
	s.Apply(StageEvent{ThoughtID: "ghost", Lane: LaneDMAResults})
	if len(s.Snapshot()) != 1 {
		t.Error("unplaceable event should not create tasks")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Apply(stageEvent("t1", "th1", LaneDMAResults, map[string]any{"k": "v"}))

	snap, _ := s.Task("t1")
	snap.Thoughts[0].LastPayload["k"] = "mutated"
	snap.Thoughts[0].Stages["DMA_RESULTS"].Payload["k"] = "mutated"

	fresh, _ := s.Task("t1")
	if fresh.Thoughts[0].LastPayload["k"] != "v" {
		t.Error("snapshot mutation leaked into store state")
	}
}

func TestStoreUpdates(t *testing.T) {
	s := NewStore(StoreConfig{})
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.Apply(stageEvent("t1", "th1", LaneActionResult, map[string]any{"action_executed": "task_complete"}))

	kinds := map[UpdateKind]bool{}
	deadline := time.After(time.Second)
	for len(kinds) < 3 {
		select {
		case u := <-ch:
			kinds[u.Kind] = true
		case <-deadline:
			t.Fatalf("timed out waiting for updates, got %v", kinds)
		}
	}
	for _, want := range []UpdateKind{UpdateTaskCreated, UpdateStage, UpdateTaskCompleted} {
		if !kinds[want] {
			t.Errorf("missing update kind %q", want)
		}
	}
}
