// Package serializer encodes the payloads exchanged with gateway shards. It defines a
// common interface and two implementations, selected by name on the command line.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Speaking the protobuf wire format of the gateway without generated code
//   - Offering a human readable encoding for debugging against the mock gateway
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - protoSerializerImpl: Delegates to the MarshalProto and UnmarshalProto methods of
//     the messages in rpc/common, which encode field by field with protowire. This is
//     the only encoding a real gateway understands and the default everywhere.
//
//   - jsonSerializerImpl: JSON encoding with bytedance/sonic. Byte fields are base64
//     encoded. Only useful when both ends agree on it (e.g. the mock gateway).
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewProtoSerializer()
//	  data, err := serializer.Serialize(&common.SingleCast{UniqId: id, Data: payload})
//	  // ... send data ...
//	  var count common.Count
//	  err = serializer.Deserialize(receivedData, &count)
package serializer
