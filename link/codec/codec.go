package codec

import (
	"strings"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/framer"
	"github.com/ValentinKolb/rlink/link/serializer"
)

// Codec converts frames between their structured form and their delimited
// wire form. It validates the magic protocol tag on both directions.
type Codec struct {
	serializer serializer.IFrameSerializer
	tag        string
	delimiter  byte
}

// NewCodec creates a new codec
func NewCodec(s serializer.IFrameSerializer, tag string, delimiter byte) *Codec {
	return &Codec{
		serializer: s,
		tag:        tag,
		delimiter:  delimiter,
	}
}

// Encode serializes frame and appends the delimiter
func (c *Codec) Encode(frame common.Frame) ([]byte, error) {
	if frame.ProtocolTag != c.tag {
		return nil, common.NewError(common.ErrKindCodec, "encode", common.ErrTagMismatch)
	}
	if !frame.Kind.Valid() {
		return nil, common.NewError(common.ErrKindCodec, "encode", common.ErrUnknownKind)
	}

	data, err := c.serializer.Serialize(frame)
	if err != nil {
		return nil, common.NewError(common.ErrKindCodec, "encode", err)
	}

	// A delimiter in the serialized form would split the frame on the wire
	if strings.IndexByte(string(data), c.delimiter) >= 0 {
		return nil, common.NewError(common.ErrKindProtocol, "encode", common.ErrDelimiterInPayload)
	}

	return framer.Encode(data, c.delimiter), nil
}

// Decode deserializes one frame string as returned by the framer.
// Every failure is a codec error and the caller drops the frame.
func (c *Codec) Decode(data []byte) (common.Frame, error) {
	var frame common.Frame

	if len(data) == 0 {
		return frame, common.NewError(common.ErrKindCodec, "decode", common.ErrEmptyFrame)
	}

	if err := c.serializer.Deserialize(data, &frame); err != nil {
		return common.Frame{}, common.NewError(common.ErrKindCodec, "decode", err)
	}

	if frame.ProtocolTag != c.tag {
		return common.Frame{}, common.NewError(common.ErrKindCodec, "decode", common.ErrTagMismatch)
	}

	return frame, nil
}

// Tag returns the protocol tag the codec accepts
func (c *Codec) Tag() string {
	return c.tag
}

// Delimiter returns the frame delimiter
func (c *Codec) Delimiter() byte {
	return c.delimiter
}
