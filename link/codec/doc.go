// Package codec implements the frame codec of the reliable link: it combines a
// serializer with the magic protocol tag and the frame delimiter.
//
// Encode produces the bytes written to the transport (serialized frame plus
// delimiter). Decode takes one frame string recovered by the framer and returns
// the structured frame, or a common.LinkError of kind ErrKindCodec when the
// frame is malformed or carries a foreign protocol tag. Callers drop frames
// that fail to decode, nothing is ever surfaced to the application.
package codec
