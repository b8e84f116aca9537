package serializer

import (
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
)

// IRPCSerializer is the interface for all payload serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to the concrete message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg common.Message) error
	// Name returns the name of the encoding (e.g. "proto", "json")
	Name() string
}

// New returns the serializer registered under name
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "proto", "protobuf", "":
		return NewProtoSerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q (supported: proto, json)", name)
	}
}
