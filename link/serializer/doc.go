// Package serializer provides frame serialization for the reliable link.
// It defines a common interface and multiple implementations for converting
// frames between their structured form and their wire text form.
//
// The package focuses on:
//   - Providing a consistent interface for different text formats
//   - Staying wire compatible with legacy peers (JSON)
//   - Offering a compact alternative for constrained links (text)
//
// Key Components:
//
//   - IFrameSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: JSON encoding with the field names of legacy
//     peers (protocolId, sequence, ack, type, packageData). The frame kind is
//     written as a string, numeric kinds are accepted when reading.
//
//   - textSerializerImpl: Semicolon separated header followed by the raw
//     payload. Roughly half the size of the JSON form for short payloads.
//
// Both formats are text. Neither escapes the frame delimiter, so payloads must
// not contain it (see the framer package).
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.Serialize(frame)
//	// ... send data ...
//	var received common.Frame
//	err = s.Deserialize(data, &received)
package serializer
