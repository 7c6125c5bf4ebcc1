// Package sync drives background refreshing of the message list. The
// scheduler pauses polling while the user is interactively active and
// resumes once an idle timeout lapses.
package sync

import (
	gosync "sync"
	"time"
)

// DefaultIdleTimeout is how long the user must be inactive before
// suppressed polling resumes.
const DefaultIdleTimeout = 45 * time.Second

// ActivitySource feeds user-activity signals (key presses, pointer
// movement, scrolling) to the scheduler. It is an interface so headless
// and test environments can supply a fake with no real input events.
type ActivitySource interface {
	Events() <-chan struct{}
}

// Status reports the scheduler's current switches. Enabled is the
// user-controlled toggle; Paused is activity-based suppression. The two
// are independent.
type Status struct {
	Enabled bool
	Paused  bool
}

// Scheduler owns the single polling timer. Changing enabled, paused,
// or the interval tears the timer down and, if applicable, recreates
// it; timers are never layered.
type Scheduler struct {
	activity    ActivitySource
	idleTimeout time.Duration

	mu       gosync.Mutex
	callback func()
	interval time.Duration
	enabled  bool
	paused   bool
	stopCh   chan struct{}
}

// New creates a scheduler. activity may be nil for headless use;
// idleTimeout <= 0 selects DefaultIdleTimeout.
func New(activity ActivitySource, idleTimeout time.Duration) *Scheduler {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Scheduler{
		activity:    activity,
		idleTimeout: idleTimeout,
		enabled:     true,
	}
}

// Start registers the poll callback and interval and, when enabled,
// brings up the polling loop. A previous loop is torn down first.
func (s *Scheduler) Start(callback func(), interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callback = callback
	s.interval = interval
	s.restartLocked()
}

// Stop tears down the polling loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// Toggle flips the user-controlled enabled switch and returns the new
// value. The activity-based pause state is unaffected.
func (s *Scheduler) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = !s.enabled
	s.restartLocked()
	return s.enabled
}

// SetEnabled forces the enabled switch, used to restore the persisted
// preference at startup.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled == enabled {
		return
	}
	s.enabled = enabled
	s.restartLocked()
}

// SetInterval changes the polling cadence, recreating the timer.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interval == s.interval {
		return
	}
	s.interval = interval
	s.restartLocked()
}

// Status returns the current switches.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Enabled: s.enabled, Paused: s.paused}
}

// restartLocked tears down any running loop and starts a fresh one when
// the scheduler is enabled and configured. Exactly one loop (and so one
// timer) is ever live.
func (s *Scheduler) restartLocked() {
	s.teardownLocked()

	if !s.enabled || s.callback == nil || s.interval <= 0 {
		return
	}

	stop := make(chan struct{})
	s.stopCh = stop

	var activityCh <-chan struct{}
	if s.activity != nil {
		activityCh = s.activity.Events()
	}

	go s.run(stop, s.callback, s.interval, activityCh)
}

func (s *Scheduler) teardownLocked() {
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.paused = false
}

// run is the single polling loop. Activity suppresses the ticker and
// arms the idle countdown; when the countdown lapses the ticker is
// recreated and polling resumes.
func (s *Scheduler) run(
	stop chan struct{},
	callback func(),
	interval time.Duration,
	activityCh <-chan struct{},
) {
	ticker := time.NewTicker(interval)
	tickCh := ticker.C

	idleTimer := time.NewTimer(s.idleTimeout)
	if !idleTimer.Stop() {
		<-idleTimer.C
	}

	defer func() {
		ticker.Stop()
		idleTimer.Stop()
	}()

	for {
		select {
		case <-stop:
			return

		case <-tickCh:
			callback()

		case _, ok := <-activityCh:
			if !ok {
				activityCh = nil
				continue
			}
			ticker.Stop()
			tickCh = nil
			s.setPaused(true)

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(s.idleTimeout)

		case <-idleTimer.C:
			s.setPaused(false)
			ticker.Stop()
			ticker = time.NewTicker(interval)
			tickCh = ticker.C
		}
	}
}

func (s *Scheduler) setPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}
