// Package tcp implements TCP socket based connectors for the transport layer. It provides
// concrete implementations of the base package's connector interfaces.
//
// Gateway worker ports are plain TCP listeners, so this is the transport used against
// a real gateway. The frame handling, reconnects and heartbeats all live in the base
// package, see its documentation for the details.
//
// Key Components:
//
//   - clientConnector: TCP specific implementation of base.IClientConnector. It dials with
//     the connect timeout of the shard and applies TCPConf and SocketConf to new sockets.
//
//   - serverConnector: TCP specific implementation of base.IServerConnector, used by the
//     mock gateway for its worker port.
package tcp
