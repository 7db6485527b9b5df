package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/rlink/link/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// This is the wire form of legacy peers:
//
//	{"protocolId":"MRQST","sequence":3,"ack":1,"type":"data","packageData":"ENTER"}
func NewJSONSerializer() IFrameSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IFrameSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IFrameSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(frame common.Frame) ([]byte, error) {
	return json.Marshal(frame)
}

func (j jsonSerializerImpl) Deserialize(b []byte, frame *common.Frame) error {
	*frame = common.Frame{}
	return json.Unmarshal(b, frame)
}

func (j jsonSerializerImpl) GetName() string {
	return "json"
}
