package serializer

import "github.com/ValentinKolb/rlink/link/common"

// IFrameSerializer is the interface for all Frame Serializers.
// Implementations must produce valid UTF-8 text, the link separates frames
// with a single delimiter byte and relies on the serialized form being text.
type IFrameSerializer interface {
	// Serialize serializes a Frame into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(frame common.Frame) ([]byte, error)
	// Deserialize deserializes a byte array into a Frame
	// It takes a byte array and a pointer to a Frame as parameters
	// It returns an error if any
	Deserialize(b []byte, frame *common.Frame) error
	// GetName returns the name of the serializer (e.g. "json", "text")
	GetName() string
}

// New creates a serializer by name
func New(name string) (IFrameSerializer, error) {
	switch name {
	case "json":
		return NewJSONSerializer(), nil
	case "text":
		return NewTextSerializer(), nil
	default:
		return nil, errUnknownSerializer(name)
	}
}
