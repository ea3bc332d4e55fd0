// ABOUTME: Canonical pipeline lanes and the fine-grained step-name classifier.
// ABOUTME: Maps server step tokens onto the fixed six-lane sequence a thought passes through.

package trace

import "strings"

// Lane is one of the six canonical checkpoints a thought passes through.
// LaneNone marks step names that do not classify into any lane.
type Lane string

const (
	LaneNone             Lane = ""
	LaneThoughtStart     Lane = "THOUGHT_START"
	LaneSnapshotContext  Lane = "SNAPSHOT_AND_CONTEXT"
	LaneDMAResults       Lane = "DMA_RESULTS"
	LaneASPDMAResult     Lane = "ASPDMA_RESULT"
	LaneConscienceResult Lane = "CONSCIENCE_RESULT"
	LaneActionResult     Lane = "ACTION_RESULT"
)

// CanonicalLanes lists the lanes in pipeline order.
var CanonicalLanes = []Lane{
	LaneThoughtStart,
	LaneSnapshotContext,
	LaneDMAResults,
	LaneASPDMAResult,
	LaneConscienceResult,
	LaneActionResult,
}

// Index returns the lane's position in the canonical sequence, or -1 for
// LaneNone and unknown values.
func (l Lane) Index() int {
	for i, lane := range CanonicalLanes {
		if lane == l {
			return i
		}
	}
	return -1
}

// stepToken pairs a lowercase substring with the lane it classifies to.
// Matching is ordered: more specific tokens come first so that, for example,
// "recursive_aspdma" hits the ASPDMA lane before the bare "dma" token could
// claim it.
type stepToken struct {
	token string
	lane  Lane
}

var stepTokens = []stepToken{
	{"thought_start", LaneThoughtStart},
	{"start_thought", LaneThoughtStart},
	{"snapshot", LaneSnapshotContext},
	{"gather_context", LaneSnapshotContext},
	{"context", LaneSnapshotContext},
	{"aspdma", LaneASPDMAResult},
	{"perform_dmas", LaneDMAResults},
	{"dma", LaneDMAResults},
	{"conscience", LaneConscienceResult},
	{"finalize_action", LaneActionResult},
	{"perform_action", LaneActionResult},
	{"action_selected", LaneActionResult},
	{"action_complete", LaneActionResult},
	{"action_result", LaneActionResult},
}

// ClassifyStep maps a fine-grained server step name onto a canonical lane
// using case-insensitive substring matching. Unknown names, including
// bookkeeping steps like "round_complete", return LaneNone. That is never an
// error: the event may still be recorded verbatim under its stage name.
func ClassifyStep(step string) Lane {
	s := strings.ToLower(strings.TrimSpace(step))
	if s == "" {
		return LaneNone
	}

	// Exact canonical lane names pass straight through (the events[] payload
	// form names lanes directly).
	for _, lane := range CanonicalLanes {
		if strings.EqualFold(s, string(lane)) {
			return lane
		}
	}

	for _, st := range stepTokens {
		if strings.Contains(s, st.token) {
			return st.lane
		}
	}
	return LaneNone
}

// SortLanes orders the given lanes canonically, dropping duplicates and
// LaneNone entries. Used by the animation scheduler to replay a burst of
// signals in pipeline order rather than arrival order.
func SortLanes(lanes []Lane) []Lane {
	seen := make(map[Lane]bool, len(lanes))
	for _, l := range lanes {
		if l != LaneNone {
			seen[l] = true
		}
	}
	ordered := make([]Lane, 0, len(seen))
	for _, l := range CanonicalLanes {
		if seen[l] {
			ordered = append(ordered, l)
		}
	}
	return ordered
}
