package serializer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ValentinKolb/rlink/link/common"
)

// textFieldSeparator separates the header fields of the text format.
// The payload is always the last field and may contain the separator.
const textFieldSeparator = ";"

// number of fields in the text format (tag, sequence, ack, kind, payload)
const textFieldCount = 5

// NewTextSerializer creates a new serializer using a compact text format
// optimized for size. A frame is written as
//
//	<tag>;<sequence>;<ack>;<kind>;<payload>
//
// e.g. "MRQST;3;1;data;ENTER" or "MRQST;4;2;resend;".
func NewTextSerializer() IFrameSerializer {
	return &textSerializerImpl{}
}

// textSerializerImpl implements IFrameSerializer using a compact text format
type textSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IFrameSerializer)
// --------------------------------------------------------------------------

func (t textSerializerImpl) Serialize(frame common.Frame) ([]byte, error) {
	if !frame.Kind.Valid() {
		return nil, fmt.Errorf("unknown frame kind: %d", uint8(frame.Kind))
	}
	if strings.Contains(frame.ProtocolTag, textFieldSeparator) {
		return nil, fmt.Errorf("protocol tag %q contains the field separator", frame.ProtocolTag)
	}

	// Calculate total size needed
	var sb strings.Builder
	sb.Grow(len(frame.ProtocolTag) + len(frame.Payload) + 48)

	// Write header fields
	sb.WriteString(frame.ProtocolTag)
	sb.WriteString(textFieldSeparator)
	sb.WriteString(strconv.FormatUint(frame.Sequence, 10))
	sb.WriteString(textFieldSeparator)
	sb.WriteString(strconv.FormatUint(frame.Ack, 10))
	sb.WriteString(textFieldSeparator)
	sb.WriteString(frame.Kind.String())
	sb.WriteString(textFieldSeparator)

	// Payload is written raw and only for data frames
	if frame.Kind == common.FrameData {
		sb.WriteString(frame.Payload)
	}

	return []byte(sb.String()), nil
}

func (t textSerializerImpl) Deserialize(data []byte, frame *common.Frame) error {
	if !utf8.Valid(data) {
		return fmt.Errorf("frame is not valid utf-8")
	}

	parts := strings.SplitN(string(data), textFieldSeparator, textFieldCount)
	if len(parts) != textFieldCount {
		return fmt.Errorf("expected %d fields, got %d", textFieldCount, len(parts))
	}

	// Read sequence
	sequence, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence %q: %v", parts[1], err)
	}

	// Read ack
	ack, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ack %q: %v", parts[2], err)
	}

	// Read kind
	kind, err := common.ParseFrameKind(parts[3])
	if err != nil {
		return err
	}

	*frame = common.Frame{
		ProtocolTag: parts[0],
		Sequence:    sequence,
		Ack:         ack,
		Kind:        kind,
	}
	if kind == common.FrameData {
		frame.Payload = parts[4]
	}

	return nil
}

func (t textSerializerImpl) GetName() string {
	return "text"
}
