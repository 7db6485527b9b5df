package conn

import (
	"testing"
	"time"
)

func TestSupervisorDisconnectsAfterMaxProbes(t *testing.T) {
	s := newSupervisor(time.Hour, 5)
	defer s.stop()

	for i := 1; i <= 4; i++ {
		probe, disconnect := s.expire()
		if !probe || disconnect {
			t.Fatalf("Expiry %d: expected probe without disconnect, got probe=%v disconnect=%v", i, probe, disconnect)
		}
	}

	probe, disconnect := s.expire()
	if !probe || !disconnect {
		t.Fatalf("Expiry 5: expected probe and disconnect, got probe=%v disconnect=%v", probe, disconnect)
	}

	// stopped for good, the disconnect is reported once
	for i := 0; i < 3; i++ {
		if probe, disconnect := s.expire(); probe || disconnect {
			t.Fatalf("Expected no further probes after disconnect, got probe=%v disconnect=%v", probe, disconnect)
		}
	}

	// traffic after the disconnect does not restart probing
	s.reset()
	if probe, _ := s.expire(); probe {
		t.Errorf("Expected reset after disconnect not to restart probing")
	}
}

func TestSupervisorResetClearsMisses(t *testing.T) {
	s := newSupervisor(time.Hour, 5)
	defer s.stop()

	for i := 0; i < 4; i++ {
		s.expire()
	}
	s.reset()

	if s.misses != 0 {
		t.Fatalf("Expected reset to clear misses, got %d", s.misses)
	}

	// a full round of misses is needed again
	for i := 1; i <= 4; i++ {
		if _, disconnect := s.expire(); disconnect {
			t.Fatalf("Unexpected disconnect on expiry %d after reset", i)
		}
	}
	if _, disconnect := s.expire(); !disconnect {
		t.Errorf("Expected disconnect on the fifth expiry after reset")
	}
}

func TestSupervisorTimerFires(t *testing.T) {
	s := newSupervisor(10*time.Millisecond, 5)
	defer s.stop()

	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("Timer did not fire")
	}

	// a reset re-arms the timer
	s.reset()
	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("Timer did not fire after reset")
	}
}
