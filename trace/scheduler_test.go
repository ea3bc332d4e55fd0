// ABOUTME: Tests for the animation scheduler's debounce, drain ordering, and single-flight backpressure.
// ABOUTME: Uses short timer windows so the full collect/play/cooldown cycle runs in milliseconds.

package trace

import (
	"sync"
	"testing"
	"time"
)

// laneRecorder captures OnLane/OnClear callbacks and signals sequence end.
type laneRecorder struct {
	mu      sync.Mutex
	lanes   []Lane
	cleared chan struct{}
}

func newLaneRecorder() *laneRecorder {
	return &laneRecorder{cleared: make(chan struct{}, 4)}
}

func (r *laneRecorder) onLane(l Lane) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lanes = append(r.lanes, l)
}

func (r *laneRecorder) onClear() {
	r.cleared <- struct{}{}
}

func (r *laneRecorder) recorded() []Lane {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lane, len(r.lanes))
	copy(out, r.lanes)
	return out
}

func (r *laneRecorder) waitClear(t *testing.T) {
	t.Helper()
	select {
	case <-r.cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cooldown clear")
	}
}

func testScheduler(r *laneRecorder) *Scheduler {
	return NewScheduler(SchedulerConfig{
		CollectWindow: 20 * time.Millisecond,
		LaneDelay:     5 * time.Millisecond,
		OnLane:        r.onLane,
		OnClear:       r.onClear,
	})
}

func TestBurstPlaysEachLaneOnceInCanonicalOrder(t *testing.T) {
	rec := newLaneRecorder()
	s := testScheduler(rec)
	defer s.Close()

	// Arrival order deliberately scrambled.
	s.Collect(LaneActionResult, "th1")
	s.Collect(LaneThoughtStart, "th2")
	s.Collect(LaneDMAResults, "th3")
	s.Collect(LaneSnapshotContext, "th4")

	rec.waitClear(t)

	got := rec.recorded()
	want := []Lane{LaneThoughtStart, LaneSnapshotContext, LaneDMAResults, LaneActionResult}
	if len(got) != len(want) {
		t.Fatalf("expected exactly %d transitions, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDuplicateLaneSignalsDeduplicate(t *testing.T) {
	rec := newLaneRecorder()
	s := testScheduler(rec)
	defer s.Close()

	s.Collect(LaneDMAResults, "th1")
	s.Collect(LaneDMAResults, "th2")
	s.Collect(LaneDMAResults, "th3")

	rec.waitClear(t)

	if got := rec.recorded(); len(got) != 1 {
		t.Errorf("expected 1 transition, got %v", got)
	}
}

func TestSignalsDuringPlaybackAreDroppedFromVisualQueue(t *testing.T) {
	rec := newLaneRecorder()
	s := NewScheduler(SchedulerConfig{
		CollectWindow: 10 * time.Millisecond,
		LaneDelay:     50 * time.Millisecond,
		OnLane:        rec.onLane,
		OnClear:       rec.onClear,
	})
	defer s.Close()

	s.Collect(LaneThoughtStart, "th1")

	// Wait for playback to begin, then send a signal mid-sequence.
	deadline := time.Now().Add(time.Second)
	for !s.Playing() {
		if time.Now().After(deadline) {
			t.Fatal("playback never started")
		}
		time.Sleep(time.Millisecond)
	}
	s.Collect(LaneActionResult, "th2")

	rec.waitClear(t)

	// Allow a full extra window: no second sequence should start.
	time.Sleep(50 * time.Millisecond)
	got := rec.recorded()
	if len(got) != 1 || got[0] != LaneThoughtStart {
		t.Errorf("mid-playback signal leaked into visual queue: %v", got)
	}
}

func TestLaneNoneSignalsIgnored(t *testing.T) {
	rec := newLaneRecorder()
	s := testScheduler(rec)
	defer s.Close()

	s.Collect(LaneNone, "th1")

	time.Sleep(60 * time.Millisecond)
	if got := rec.recorded(); len(got) != 0 {
		t.Errorf("LaneNone should never animate: %v", got)
	}
}

func TestEachSignalRestartsWindow(t *testing.T) {
	rec := newLaneRecorder()
	s := NewScheduler(SchedulerConfig{
		CollectWindow: 40 * time.Millisecond,
		LaneDelay:     time.Millisecond,
		OnLane:        rec.onLane,
		OnClear:       rec.onClear,
	})
	defer s.Close()

	// Keep re-arming the window; nothing should play while signals keep coming.
	for i := 0; i < 3; i++ {
		s.Collect(LaneDMAResults, "th1")
		time.Sleep(15 * time.Millisecond)
		if got := rec.recorded(); len(got) != 0 {
			t.Fatalf("window drained early after %d signals: %v", i+1, got)
		}
	}

	rec.waitClear(t)
	if got := rec.recorded(); len(got) != 1 {
		t.Errorf("expected a single drained transition, got %v", got)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	rec := newLaneRecorder()
	s := testScheduler(rec)

	s.Collect(LaneDMAResults, "th1")
	s.Close()

	time.Sleep(60 * time.Millisecond)
	if got := rec.recorded(); len(got) != 0 {
		t.Errorf("Close should cancel the pending window: %v", got)
	}

	// Collect after Close is a no-op.
	s.Collect(LaneActionResult, "th2")
	time.Sleep(40 * time.Millisecond)
	if got := rec.recorded(); len(got) != 0 {
		t.Errorf("Collect after Close should be ignored: %v", got)
	}
}
