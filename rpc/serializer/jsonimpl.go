package serializer

import (
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/bytedance/sonic"
)

// NewJSONSerializer creates a new serializer using json encoding.
// It is not understood by a real gateway and meant for debugging and the mock gateway.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using sonic's json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return sonic.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg common.Message) error {
	if len(b) == 0 {
		return nil
	}
	return sonic.Unmarshal(b, msg)
}

func (j jsonSerializerImpl) Name() string {
	return "json"
}
