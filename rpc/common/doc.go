// Package common provides the data structures and utilities shared by all packages
// talking to a sharded websocket gateway cluster. It defines the wire level
// protocol elements, the configuration structures and the logging and metrics setup.
//
// The package focuses on:
//   - Opcodes (Cmd) and the body layout (opcode + payload) of every frame
//   - Payload messages with a self contained protobuf wire encoding
//   - Configuration structures for gateway shards, push connections and the mock gateway
//   - The error taxonomy (soft vs. hard failures)
//   - Custom logging implementation integrated with Dragonboat's logger facade, backed by zap
//   - Client metrics in Prometheus text format
//
// Key Components:
//
//   - Cmd: Enumeration of all commands understood by a gateway shard, grouped into
//     events, push connection management, delivery, topics, connection management and queries.
//
//   - Message: Interface implemented by every payload. Each message appends its protobuf
//     encoding field by field (MarshalProto) and decodes it again while skipping unknown
//     fields (UnmarshalProto), so the payloads stay compatible with gateways that add fields.
//
//   - ShardConfig: Per shard connection parameters (timeouts, idle refresh, heartbeat
//     sentinels, frame size limit, socket tuning). DefaultShardConfig applies sane defaults.
//
//   - ClientConfig: The set of shards plus push connection settings.
//
//   - Errors: ErrReceiveTimeout and ErrNoData are soft (the connection stays usable),
//     everything else is hard. RegistrationError carries the status of a rejected registration.
//
//   - Logger: zap backed implementation of Dragonboat's ILogger, installed by InitLoggers.
package common
