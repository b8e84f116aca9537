package serializer

import (
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
)

// NewProtoSerializer creates a new serializer using the protobuf wire format the gateway speaks
func NewProtoSerializer() IRPCSerializer {
	return &protoSerializerImpl{}
}

// protoSerializerImpl implements the IRPCSerializer interface with the protowire encoders of the messages
type protoSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (p protoSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", common.ErrInvalidArgument)
	}
	return msg.MarshalProto(nil), nil
}

func (p protoSerializerImpl) Deserialize(b []byte, msg common.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", common.ErrInvalidArgument)
	}
	return msg.UnmarshalProto(b)
}

func (p protoSerializerImpl) Name() string {
	return "proto"
}
