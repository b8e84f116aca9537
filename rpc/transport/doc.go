// Package transport defines the connection contracts between the gateway client and
// the shards of a gateway cluster.
//
// The package focuses on:
//   - Defining the two connection roles a business process holds per shard
//   - Giving the command layer shard keyed access to connections
//   - Delivering client events forwarded by the shards
//
// Key Components:
//
//   - ITaskConn: Request/response connection. One request in flight, no correlation id,
//     the reply to a request is the next frame on the same socket.
//
//   - IPushConn: Connection registered at a shard to receive events. Unregistering goes
//     over the task connection of the same shard.
//
//   - ITaskConnPool: Lookup of the task connection of a shard.
//
//   - IEventHandler / EventHandlerFuncs: Callbacks for OnOpen, OnMessage and OnClose.
//
// Implementations live in the base package, socket specific connectors in the tcp
// and unix packages.
package transport
