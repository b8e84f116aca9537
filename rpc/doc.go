// Package rpc provides the communication layer between business processes and a
// sharded websocket gateway. Every shard owns a disjoint set of websocket clients,
// identified by the hex prefix of their uniqIds.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the system,
//     including the frame format, the gateway commands, configuration structures and logging.
//
//   - transport: Connection abstractions for task (request/response) and push
//     (event) connections with pluggable socket implementations (TCP, Unix sockets).
//
//   - serializer: Payload serialization (Protobuf, JSON) for converting between
//     Message objects and byte arrays.
//
//   - client: The NetBus, routing every command to the owning shards, fanning out
//     to all shards and merging their replies.
//
//   - server: An in-process gateway shard speaking the same protocol, used for
//     tests and local development.
package rpc
