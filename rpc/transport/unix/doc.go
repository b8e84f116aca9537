// Package unix implements Unix domain socket connectors for the transport layer. It is
// used when the business process runs on the same machine as the gateway and the
// worker port is bound to a socket file.
//
// This package only supplies the socket specific parts; frame handling, reconnects and
// heartbeats are inherited from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners for the mock gateway, removing a
//     stale socket file first
//
// Performance Characteristics:
//
//   - Reduced overhead: Eliminates TCP/IP stack processing
//   - Lower latency: Direct kernel-mediated IPC avoids network subsystem overhead
package unix
