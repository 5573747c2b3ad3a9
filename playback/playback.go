// Package playback steps the displayed robot along a planned path, one waypoint per tick.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rob102-staff/nav-app/clock"
	"github.com/rob102-staff/nav-app/models"
)

// State is the run state of a Scheduler.
type State int

const (
	Idle State = iota
	Running
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Interval is the playback step: base minus the user's speedup, never less than min.
// A non-positive min is raised to one millisecond.
func Interval(base, speedup, min time.Duration) time.Duration {
	if min <= 0 {
		min = time.Millisecond
	}
	if d := base - speedup; d > min {
		return d
	}
	return min
}

// Scheduler delivers the waypoints of one path at a time to a move callback, in order and
// exactly once each. Starting a new path preempts the current one.
//
// A Scheduler is driven either by Run, or by a loop that selects on Ticks and calls Tick,
// so that the move callback executes on that loop's goroutine.
type Scheduler struct {
	mu       sync.Mutex
	clk      clock.Clock
	interval time.Duration
	onMove   func(models.Pose)

	state  State
	path   []models.Pose
	next   int
	ticker clock.Ticker
	wake   chan struct{}
}

// NewScheduler returns an idle scheduler stepping every interval.
func NewScheduler(clk clock.Clock, interval time.Duration, onMove func(models.Pose)) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Scheduler{
		clk:      clk,
		interval: Interval(interval, 0, 0),
		onMove:   onMove,
		wake:     make(chan struct{}, 1),
	}
}

// Start begins playing path from its first waypoint. An empty path leaves the scheduler idle.
func (s *Scheduler) Start(path []models.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halt(Idle)
	if len(path) == 0 {
		return
	}
	s.path = append([]models.Pose(nil), path...)
	s.next = 0
	s.state = Running
	s.ticker = s.clk.NewTicker(s.interval)
	s.notify()
}

// Tick advances one waypoint. After the last waypoint the following tick finishes the run.
// Ticks received after Pause or Stop do nothing. Reports whether a waypoint was delivered.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return false
	}
	if s.next >= len(s.path) {
		s.halt(Finished)
		s.mu.Unlock()
		return false
	}
	waypoint := s.path[s.next]
	s.next++
	onMove := s.onMove
	s.mu.Unlock()

	if onMove != nil {
		onMove(waypoint)
	}
	return true
}

// Pause suspends a running playback. Other states are unaffected.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return
	}
	s.stopTicker()
	s.state = Paused
	s.notify()
}

// Resume continues a paused playback from the waypoint after the last one delivered.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Paused {
		return
	}
	s.state = Running
	s.ticker = s.clk.NewTicker(s.interval)
	s.notify()
}

// Stop cancels playback from any state and returns to idle. It is always safe to call.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halt(Idle)
}

// SetInterval changes the step period. A running playback continues at the new period.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = Interval(d, 0, 0)
	if s.state == Running {
		s.stopTicker()
		s.ticker = s.clk.NewTicker(s.interval)
		s.notify()
	}
}

// Ticks is the channel of the active run's ticker, or nil when nothing is scheduled.
// A nil channel blocks forever in a select, so a loop may always include it.
func (s *Scheduler) Ticks() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return nil
	}
	return s.ticker.C()
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the number of waypoints delivered and the path length.
func (s *Scheduler) Progress() (delivered, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, len(s.path)
}

// Run drives the scheduler until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		case <-s.wake:
		case <-s.Ticks():
			s.Tick()
		}
	}
}

// halt stops ticking and enters state. Callers hold mu.
func (s *Scheduler) halt(state State) {
	s.stopTicker()
	if state == Idle {
		s.path = nil
		s.next = 0
	}
	s.state = state
	s.notify()
}

func (s *Scheduler) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// notify wakes Run so that it re-reads Ticks.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
