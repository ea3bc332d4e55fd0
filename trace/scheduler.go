// ABOUTME: Animation scheduler converting bursts of lane transitions into a watchable, rate-limited sequence.
// ABOUTME: Two-phase debounce-then-drain with a single-flight playback lock; visual queue is lossy, store state never is.

package trace

import (
	"sync"
	"time"
)

const (
	// DefaultCollectWindow is how long the scheduler waits for a burst to
	// settle before draining. Each new signal restarts the window.
	DefaultCollectWindow = 150 * time.Millisecond

	// DefaultLaneDelay is the pause between lane highlights during
	// playback, guaranteeing each transition is visible.
	DefaultLaneDelay = 800 * time.Millisecond
)

// SchedulerConfig configures a Scheduler. Zero durations select defaults.
type SchedulerConfig struct {
	CollectWindow time.Duration
	LaneDelay     time.Duration

	// OnLane is invoked once per lane during playback, in canonical order.
	OnLane func(Lane)

	// OnClear is invoked after a playback sequence finishes (cooldown).
	OnClear func()
}

// Scheduler buffers lane-reached signals and plays them back one lane at a
// time. Signals arriving while a sequence is playing are dropped from the
// visual queue only; the store has already recorded them, so data
// consistency is never deferred for the sake of the animation.
type Scheduler struct {
	mu      sync.Mutex
	cfg     SchedulerConfig
	pending map[Lane]bool
	timer   *time.Timer
	playing bool
	closed  bool
	done    chan struct{}
}

// NewScheduler creates a Scheduler with the given configuration.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.CollectWindow <= 0 {
		cfg.CollectWindow = DefaultCollectWindow
	}
	if cfg.LaneDelay <= 0 {
		cfg.LaneDelay = DefaultLaneDelay
	}
	return &Scheduler{
		cfg:     cfg,
		pending: make(map[Lane]bool),
		done:    make(chan struct{}),
	}
}

// Collect enqueues a lane-reached signal. The thought ID identifies the
// signal source; the visual queue itself is lane-granular, so signals for
// the same lane within one window deduplicate. Each call restarts the
// collection window. Calls during playback are dropped (backpressure).
func (s *Scheduler) Collect(lane Lane, thoughtID string) {
	_ = thoughtID

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.playing || lane == LaneNone {
		return
	}

	s.pending[lane] = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.CollectWindow, s.drain)
}

// Playing reports whether a playback sequence is currently running.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// drain moves the buffered signals into a playback sequence. Runs on the
// collection timer; playback itself runs on its own goroutine so the timer
// callback never blocks.
func (s *Scheduler) drain() {
	s.mu.Lock()
	if s.closed || s.playing || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}

	lanes := make([]Lane, 0, len(s.pending))
	for lane := range s.pending {
		lanes = append(lanes, lane)
	}
	s.pending = make(map[Lane]bool)
	s.playing = true
	s.mu.Unlock()

	go s.play(SortLanes(lanes))
}

// play highlights each lane in canonical order with a fixed inter-lane
// delay, then clears. Close interrupts the sequence promptly.
func (s *Scheduler) play(lanes []Lane) {
	timer := time.NewTimer(s.cfg.LaneDelay)
	defer timer.Stop()

	for _, lane := range lanes {
		if s.cfg.OnLane != nil {
			s.cfg.OnLane(lane)
		}

		timer.Reset(s.cfg.LaneDelay)
		select {
		case <-timer.C:
		case <-s.done:
			return
		}
	}

	if s.cfg.OnClear != nil {
		s.cfg.OnClear()
	}

	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

// Close tears the scheduler down: the collection timer is cancelled, any
// in-flight playback stops at the next delay boundary, and all later
// Collect calls become no-ops.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
}
