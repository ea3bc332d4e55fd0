// ABOUTME: Tests for lane classification of fine-grained server step names.
// ABOUTME: Covers substring matching, ordering pitfalls, unknown tokens, and canonical lane sorting.

package trace

import "testing"

func TestClassifyStep(t *testing.T) {
	cases := []struct {
		step string
		want Lane
	}{
		{"thought_start", LaneThoughtStart},
		{"gather_context", LaneSnapshotContext},
		{"build_snapshot", LaneSnapshotContext},
		{"perform_dmas", LaneDMAResults},
		{"perform_aspdma", LaneASPDMAResult},
		{"recursive_aspdma", LaneASPDMAResult}, // must not be claimed by the dma token
		{"conscience_execution", LaneConscienceResult},
		{"recursive_conscience", LaneConscienceResult},
		{"finalize_action", LaneActionResult},
		{"perform_action", LaneActionResult},
		{"action_selected", LaneActionResult},
		{"FINALIZE_ACTION", LaneActionResult}, // case-insensitive
		{"round_complete", LaneNone},
		{"some_future_step", LaneNone},
		{"", LaneNone},
		// Explicit canonical names pass through.
		{"ACTION_RESULT", LaneActionResult},
		{"snapshot_and_context", LaneSnapshotContext},
	}

	for _, tc := range cases {
		if got := ClassifyStep(tc.step); got != tc.want {
			t.Errorf("ClassifyStep(%q) = %q, want %q", tc.step, got, tc.want)
		}
	}
}

func TestLaneIndex(t *testing.T) {
	if got := LaneThoughtStart.Index(); got != 0 {
		t.Errorf("THOUGHT_START index = %d, want 0", got)
	}
	if got := LaneActionResult.Index(); got != 5 {
		t.Errorf("ACTION_RESULT index = %d, want 5", got)
	}
	if got := LaneNone.Index(); got != -1 {
		t.Errorf("LaneNone index = %d, want -1", got)
	}
}

func TestSortLanes(t *testing.T) {
	in := []Lane{LaneActionResult, LaneThoughtStart, LaneDMAResults, LaneActionResult, LaneNone}
	got := SortLanes(in)

	want := []Lane{LaneThoughtStart, LaneDMAResults, LaneActionResult}
	if len(got) != len(want) {
		t.Fatalf("expected %d lanes, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
