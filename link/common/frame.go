package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Frame Structure
// --------------------------------------------------------------------------

// DefaultProtocolTag is the magic string every frame has to carry.
// Frames with a different tag are dropped by the receiving side.
const DefaultProtocolTag = "MRQST"

// DefaultDelimiter separates frames in the byte stream
const DefaultDelimiter byte = '|'

// Frame is the unit of wire exchange between two peers.
// Which fields are used depends on the kind of frame.
type Frame struct {
	// Magic protocol tag
	ProtocolTag string `json:"protocolId"`

	// Sequence is strictly increasing per sender for data frames (starts at 1).
	// Control frames carry the next unallocated sequence without consuming it.
	Sequence uint64 `json:"sequence"`

	// Ack is the highest contiguously received sequence of the peer at send time
	Ack uint64 `json:"ack"`

	// Kind of frame
	Kind FrameKind `json:"type"`

	// Payload is opaque to the protocol, only used for data frames
	Payload string `json:"packageData,omitempty"`
}

// String returns a short human readable representation of the frame
func (f Frame) String() string {
	if f.Kind == FrameData {
		return fmt.Sprintf("{%s seq=%d ack=%d len=%d}", f.Kind, f.Sequence, f.Ack, len(f.Payload))
	}
	return fmt.Sprintf("{%s seq=%d ack=%d}", f.Kind, f.Sequence, f.Ack)
}

// --------------------------------------------------------------------------
// Frame Factory Functions
// --------------------------------------------------------------------------

// NewDataFrame creates a new data frame
func NewDataFrame(tag string, sequence, ack uint64, payload string) Frame {
	return Frame{
		ProtocolTag: tag,
		Sequence:    sequence,
		Ack:         ack,
		Kind:        FrameData,
		Payload:     payload,
	}
}

// NewResendRequest creates a frame asking the peer to replay everything after ack
func NewResendRequest(tag string, sequence, ack uint64) Frame {
	return Frame{
		ProtocolTag: tag,
		Sequence:    sequence,
		Ack:         ack,
		Kind:        FrameResendRequest,
	}
}

// NewTimeoutProbe creates a keepalive probe frame
func NewTimeoutProbe(tag string, sequence, ack uint64) Frame {
	return Frame{
		ProtocolTag: tag,
		Sequence:    sequence,
		Ack:         ack,
		Kind:        FrameTimeoutProbe,
	}
}

// --------------------------------------------------------------------------
// Frame Kind Definition
// --------------------------------------------------------------------------

// FrameKind defines the kind of frame exchanged on the wire.
// The numeric values match the request types of legacy peers
// (0 = data, 1 = resend, 2 = timeout).
type FrameKind uint8

const (
	FrameData          FrameKind = iota // Carries an application payload
	FrameResendRequest                  // Asks the peer to replay its backlog
	FrameTimeoutProbe                   // Keepalive sent after a period of silence
)

// String returns the string representation of a FrameKind.
func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameResendRequest:
		return "resend"
	case FrameTimeoutProbe:
		return "timeout"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the known frame kinds
func (k FrameKind) Valid() bool {
	return k <= FrameTimeoutProbe
}

// ParseFrameKind converts the string form back into a FrameKind
func ParseFrameKind(s string) (FrameKind, error) {
	switch s {
	case "data":
		return FrameData, nil
	case "resend":
		return FrameResendRequest, nil
	case "timeout":
		return FrameTimeoutProbe, nil
	default:
		return 0, fmt.Errorf("unknown frame kind: %s", s)
	}
}

// MarshalJSON implements the json.Marshaller interface for FrameKind.
// This allows FrameKind to be serialized as a string in JSON.
func (k FrameKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown frame kind: %d", uint8(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for FrameKind.
// Both the string form and the numeric form of legacy peers are accepted.
func (k *FrameKind) UnmarshalJSON(data []byte) error {
	var n uint8
	if err := json.Unmarshal(data, &n); err == nil {
		if !FrameKind(n).Valid() {
			return fmt.Errorf("unknown frame kind: %d", n)
		}
		*k = FrameKind(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseFrameKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
