package conn

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/rlink/link/common"
)

const tag = common.DefaultProtocolTag

func payloads(ds []delivery) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.payload)
	}
	return out
}

// TestSequencerGapRepair walks through the loss of a single frame:
// the receiver sees 1 then 3, requests a resend and gets 2 and 3 again
func TestSequencerGapRepair(t *testing.T) {
	sender, receiver := newSequencer(tag), newSequencer(tag)

	f1 := sender.data("A")
	_ = sender.data("B") // lost
	f3 := sender.data("C")

	out := receiver.handle(f1)
	if got := payloads(out.deliver); len(got) != 1 || got[0] != "A" {
		t.Fatalf("Expected A to be delivered, got %v", got)
	}
	if receiver.localAck != 1 {
		t.Fatalf("Expected local ack 1, got %d", receiver.localAck)
	}

	out = receiver.handle(f3)
	if !out.dropped || len(out.deliver) != 0 {
		t.Fatalf("Expected frame after the gap to be dropped, got %+v", out)
	}
	if len(out.transmit) != 1 {
		t.Fatalf("Expected exactly one resend request, got %d frames", len(out.transmit))
	}
	req := out.transmit[0]
	if req.Kind != common.FrameResendRequest || req.Ack != 1 {
		t.Fatalf("Expected resend request with ack 1, got %s", req)
	}

	out = sender.handle(req)
	if got := sequences(out.transmit); !equalSeqs(got, []uint64{2, 3}) {
		t.Fatalf("Expected resend of [2 3], got %v", got)
	}
	if out.pruned != 1 {
		t.Errorf("Expected the resend request to acknowledge frame 1, pruned %d", out.pruned)
	}

	var delivered []string
	delivered = append(delivered, "A")
	for _, f := range out.transmit {
		delivered = append(delivered, payloads(receiver.handle(f).deliver)...)
	}

	expected := []string{"A", "B", "C"}
	if len(delivered) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, delivered)
	}
	for i := range expected {
		if delivered[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, delivered)
		}
	}
	if receiver.localAck != 3 {
		t.Errorf("Expected local ack 3, got %d", receiver.localAck)
	}
}

func TestSequencerDropsDuplicates(t *testing.T) {
	sender, receiver := newSequencer(tag), newSequencer(tag)

	f1 := sender.data("A")
	f2 := sender.data("B")
	receiver.handle(f1)
	receiver.handle(f2)

	for i := 0; i < 3; i++ {
		for _, f := range []common.Frame{f1, f2} {
			out := receiver.handle(f)
			if !out.dropped || len(out.deliver) != 0 || len(out.transmit) != 0 {
				t.Fatalf("Expected duplicate %d to be dropped silently, got %+v", f.Sequence, out)
			}
		}
	}

	if receiver.localAck != 2 {
		t.Errorf("Expected local ack to stay at 2, got %d", receiver.localAck)
	}
}

func TestSequencerPrunesAcknowledged(t *testing.T) {
	s := newSequencer(tag)
	for i := 0; i < 5; i++ {
		s.data("x")
	}

	for _, ack := range []uint64{0, 2, 2, 4, 5} {
		// any kind of frame carries the ack
		for _, f := range []common.Frame{
			common.NewDataFrame(tag, 0, ack, ""),
			common.NewTimeoutProbe(tag, 1, ack),
		} {
			s.handle(f)
			for _, e := range s.log.after(0) {
				if e.Sequence <= ack {
					t.Fatalf("Log still holds %d after ack %d", e.Sequence, ack)
				}
			}
		}
	}

	if s.log.len() != 0 {
		t.Errorf("Expected empty log, got %d entries", s.log.len())
	}
}

func TestSequencerResendRequestIsPrecise(t *testing.T) {
	s := newSequencer(tag)
	for i := 0; i < 6; i++ {
		s.data("x")
	}

	out := s.handle(common.NewResendRequest(tag, 1, 3))
	if got := sequences(out.transmit); !equalSeqs(got, []uint64{4, 5, 6}) {
		t.Errorf("Expected resend of [4 5 6], got %v", got)
	}
	for _, f := range out.transmit {
		if f.Kind != common.FrameData {
			t.Errorf("Expected resent frames to be data frames, got %s", f)
		}
	}

	// a request for everything that is already acknowledged resends nothing
	out = s.handle(common.NewResendRequest(tag, 1, 6))
	if len(out.transmit) != 0 {
		t.Errorf("Expected nothing to resend, got %v", sequences(out.transmit))
	}
}

func TestSequencerAnswersProbe(t *testing.T) {
	s := newSequencer(tag)

	out := s.handle(common.NewTimeoutProbe(tag, 1, 0))
	if len(out.transmit) != 0 {
		t.Errorf("Expected no answer with empty log, got %v", sequences(out.transmit))
	}

	s.data("A")
	s.data("B")

	out = s.handle(common.NewTimeoutProbe(tag, 1, 0))
	if got := sequences(out.transmit); !equalSeqs(got, []uint64{2}) {
		t.Errorf("Expected resend of the newest entry [2], got %v", got)
	}
	if out.dropped {
		t.Errorf("Expected probe not to count as dropped frame")
	}
}

func TestSequencerControlFramesKeepSequence(t *testing.T) {
	s := newSequencer(tag)
	s.data("A")

	probe := s.probe()
	if probe.Sequence != 2 || probe.Kind != common.FrameTimeoutProbe {
		t.Errorf("Expected probe with next sequence 2, got %s", probe)
	}

	// a gap makes the sequencer emit a resend request
	out := s.handle(common.NewDataFrame(tag, 5, 0, "late"))
	if len(out.transmit) != 1 || out.transmit[0].Sequence != 2 {
		t.Fatalf("Expected resend request with sequence 2, got %v", out.transmit)
	}

	if f := s.data("B"); f.Sequence != 2 {
		t.Errorf("Expected control frames not to consume sequence numbers, next data got %d", f.Sequence)
	}
}

func TestSequencerRejectsForeignTag(t *testing.T) {
	s := newSequencer(tag)
	s.data("A")

	out := s.handle(common.NewResendRequest("OTHER", 1, 5))
	if !out.dropped || len(out.transmit) != 0 {
		t.Errorf("Expected foreign frame to be dropped without answer, got %+v", out)
	}
	if !errors.Is(out.err, common.ErrTagMismatch) || !common.IsKind(out.err, common.ErrKindProtocol) {
		t.Errorf("Expected protocol error wrapping ErrTagMismatch, got %v", out.err)
	}
	if s.log.len() != 1 {
		t.Errorf("Expected foreign ack to leave the log alone, got %d entries", s.log.len())
	}
}

func TestSequencerRejectsUnknownKind(t *testing.T) {
	s := newSequencer(tag)

	out := s.handle(common.Frame{ProtocolTag: tag, Sequence: 1, Kind: common.FrameKind(9)})
	if !out.dropped || !errors.Is(out.err, common.ErrUnknownKind) {
		t.Errorf("Expected unknown kind to be dropped with ErrUnknownKind, got %+v", out)
	}
}

// TestSequencerLossyExchange runs two sequencers against each other over a
// simulated network that loses, duplicates and reorders frames and drops
// frames when a direction is congested. The receiver must deliver every
// payload exactly once and in order.
func TestSequencerLossyExchange(t *testing.T) {
	const (
		count    = 100
		wireCap  = 64
		maxRound = 200000
	)

	payload := func(i int) string {
		return fmt.Sprintf("payload-%d", i)
	}

	for _, seed := range []int64{1, 2, 3, 42, 1337} {
		rng := rand.New(rand.NewSource(seed))
		a, b := newSequencer(tag), newSequencer(tag)
		var toB, toA []common.Frame

		// push puts frames on a wire, applying loss, duplication and congestion
		push := func(wire *[]common.Frame, frames ...common.Frame) {
			for _, f := range frames {
				if rng.Float64() < 0.1 || len(*wire) >= wireCap {
					continue
				}
				*wire = append(*wire, f)
				if rng.Float64() < 0.05 && len(*wire) < wireCap {
					*wire = append(*wire, f)
				}
			}
		}

		// pop takes the next frame off a wire, sometimes swapping the first two
		pop := func(wire *[]common.Frame) common.Frame {
			if len(*wire) > 1 && rng.Float64() < 0.1 {
				(*wire)[0], (*wire)[1] = (*wire)[1], (*wire)[0]
			}
			f := (*wire)[0]
			*wire = (*wire)[1:]
			return f
		}

		var delivered []string
		sent := 0
		for round := 0; len(delivered) < count; round++ {
			if round > maxRound {
				t.Fatalf("seed %d: no progress, delivered %d of %d", seed, len(delivered), count)
			}

			if sent < count {
				push(&toB, a.data(payload(sent)))
				sent++
			}

			if len(toB) > 0 {
				out := b.handle(pop(&toB))
				delivered = append(delivered, payloads(out.deliver)...)
				push(&toA, out.transmit...)
			}
			if len(toA) > 0 {
				out := a.handle(pop(&toA))
				push(&toB, out.transmit...)
			}

			// both wires silent, the receiver's supervisor would probe
			if len(toA) == 0 && len(toB) == 0 && sent == count {
				push(&toA, b.probe())
			}
		}

		for i, p := range delivered {
			if p != payload(i) {
				t.Fatalf("seed %d: expected %q at position %d, got %q", seed, payload(i), i, p)
			}
		}
		if b.localAck != count {
			t.Errorf("seed %d: expected local ack %d, got %d", seed, count, b.localAck)
		}
	}
}
