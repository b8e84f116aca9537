// Package server implements an in-process shard of a websocket gateway. It speaks the worker
// protocol of the gateway (length prefixed frames with an opcode in front of every body) and is
// used for tests, demos and the mock command of the CLI.
//
// The package focuses on:
//   - Accepting websocket clients and issuing uniqIds carrying the shard prefix
//   - Executing worker commands (delivery, topics, connection info and queries) against the clients
//   - Forwarding client events (open, message, close) to registered push connections
//
// Key Components:
//
//   - GatewayServer: One shard with a worker port (tcp or unix) and a websocket port.
//     Every worker command is recorded, so tests can assert what a client sent.
//
//   - IGatewayAdapter: Interface for a group of worker commands. The push adapter handles
//     registration, the send adapter all writes and the query adapter all reads.
//
//   - State: Clients, push connections, meters and limits of the shard.
//
// Writes are never answered. Reads are answered with the opcode of the request and only
// contain the data of this shard, merging is done by the client.
//
// Events are forwarded to one push connection subscribed to the event, the connections
// take turns. The register reply is written before the first event.
//
// Usage Example:
//
//	g := server.NewGatewayServer(common.DefaultGatewayConfig(1), shard.NewHexPrefixRouter(0), serializer.NewProtoSerializer())
//	if err := g.Start(); err != nil {
//	  log.Fatalf("Gateway error: %v", err)
//	}
//	defer g.Close()
//
//	// websocket clients connect to g.WebsocketURL(), business processes to g.WorkerAddr()
//
// Thread Safety:
//
//	All methods of GatewayServer are safe for concurrent use. Frames of one worker connection
//	are handled in order, different connections are handled concurrently.
package server
