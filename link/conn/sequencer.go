package conn

import (
	"fmt"

	"github.com/ValentinKolb/rlink/link/common"
)

// delivery is a payload accepted in order, ready for the inbound queue
type delivery struct {
	sequence uint64
	payload  string
}

// outcome describes what the actor has to do after the sequencer handled a frame
type outcome struct {
	transmit []common.Frame // frames to put on the wire, in order
	deliver  []delivery     // payloads to hand to the application, in order
	pruned   int            // log entries acknowledged by the frame
	dropped  bool           // the frame itself was discarded
	err      error          // protocol violation, the frame was discarded
}

// sequencer is the protocol core. It owns the send sequence counter, the
// local ack and the retransmission log, and decides for every inbound frame
// whether it is accepted, dropped or answered. It is not safe for concurrent
// use, the connection actor is its only caller.
type sequencer struct {
	tag      string
	nextSeq  uint64 // next unallocated data sequence, starts at 1
	localAck uint64 // last sequence accepted from the peer
	log      *sendLog
}

func newSequencer(tag string) *sequencer {
	return &sequencer{
		tag:     tag,
		nextSeq: 1,
		log:     &sendLog{},
	}
}

// data allocates the next sequence for payload, logs the frame for
// retransmission and returns it. The current local ack is piggy-backed.
func (s *sequencer) data(payload string) common.Frame {
	f := common.NewDataFrame(s.tag, s.nextSeq, s.localAck, payload)
	s.nextSeq++
	s.log.append(f)
	return f
}

// probe returns a timeout probe. Control frames carry the next unallocated
// sequence without consuming it.
func (s *sequencer) probe() common.Frame {
	return common.NewTimeoutProbe(s.tag, s.nextSeq, s.localAck)
}

// resendRequest asks the peer to replay everything after the local ack
func (s *sequencer) resendRequest() common.Frame {
	return common.NewResendRequest(s.tag, s.nextSeq, s.localAck)
}

// handle applies one decoded inbound frame
func (s *sequencer) handle(f common.Frame) outcome {
	if f.ProtocolTag != s.tag {
		return outcome{
			dropped: true,
			err:     common.NewError(common.ErrKindProtocol, "handle", fmt.Errorf("%w: got %q", common.ErrTagMismatch, f.ProtocolTag)),
		}
	}

	// every frame acknowledges what the peer has received so far
	out := outcome{pruned: s.log.pruneThrough(f.Ack)}

	switch f.Kind {
	case common.FrameResendRequest:
		out.transmit = s.log.after(f.Ack)

	case common.FrameTimeoutProbe:
		// echo the newest unacknowledged frame as keepalive answer
		if last, ok := s.log.last(); ok {
			out.transmit = []common.Frame{last}
		}

	case common.FrameData:
		switch {
		case f.Sequence <= s.localAck:
			// duplicate or stale
			out.dropped = true

		case f.Sequence == s.localAck+1:
			s.localAck = f.Sequence
			out.deliver = []delivery{{sequence: f.Sequence, payload: f.Payload}}

		default:
			// gap, the frame is not buffered and has to arrive again through the resend
			out.dropped = true
			out.transmit = []common.Frame{s.resendRequest()}
		}

	default:
		out.dropped = true
		out.err = common.NewError(common.ErrKindProtocol, "handle", fmt.Errorf("%w: %d", common.ErrUnknownKind, uint8(f.Kind)))
	}

	return out
}
