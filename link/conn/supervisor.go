package conn

import "time"

// supervisor detects silence on the link. The timer is re-armed by every
// inbound datagram, each expiry without traffic counts as one miss. When the
// misses reach maxProbes the peer is declared gone, exactly once, and the
// supervisor stops.
type supervisor struct {
	interval  time.Duration
	maxProbes int
	timer     *time.Timer
	misses    int
	fired     bool
}

func newSupervisor(interval time.Duration, maxProbes int) *supervisor {
	return &supervisor{
		interval:  interval,
		maxProbes: maxProbes,
		timer:     time.NewTimer(interval),
	}
}

// C delivers the timer expiries
func (s *supervisor) C() <-chan time.Time {
	return s.timer.C
}

// reset clears the miss counter and restarts the silence interval
func (s *supervisor) reset() {
	s.misses = 0
	if s.fired {
		return
	}
	s.timer.Reset(s.interval)
}

// expire handles one timer expiry. It reports whether a probe has to be sent
// and whether the peer has to be declared disconnected.
func (s *supervisor) expire() (probe, disconnect bool) {
	if s.fired {
		return false, false
	}

	s.misses++
	if s.misses >= s.maxProbes {
		s.fired = true
		return true, true
	}

	s.timer.Reset(s.interval)
	return true, false
}

// stop releases the timer
func (s *supervisor) stop() {
	s.timer.Stop()
}
