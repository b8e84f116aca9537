// Package base implements the connection layer of the gateway client independent of the
// socket type (TCP, Unix sockets). Socket specific operations are injected through the
// IClientConnector and IServerConnector interfaces.
//
// The package focuses on:
//   - Length prefixed framing (u32 big endian length + body) with a carry-over buffer
//   - Telling soft receive timeouts (no byte of a frame arrived) from hard failures
//   - Keeping exactly one request in flight per socket, the reply is the next frame
//   - Reconnecting idle or broken sockets before they are used again
//   - Keeping push connections registered across unexpected disconnects
//
// Key Components:
//
//   - FrameReader / WriteFrame: The frame codec. A deadline expiring before the first
//     byte of a frame is reported as common.ErrReceiveTimeout, anything cutting a frame
//     in half is a hard error and the socket is dropped.
//
//   - taskConn: Request/response connection (transport.ITaskConn). Sends reconnect when
//     the socket was idle for longer than the max idle time and retry failed writes with
//     exponential backoff. Heartbeat pongs are reported as common.ErrNoData and skipped
//     by Request.
//
//   - pushConn: Event connection (transport.IPushConn). Register hands the socket to an
//     event reader goroutine that dispatches ConnOpen, Transfer and ConnClose frames to a
//     transport.IEventHandler. If the socket is lost, a recovery loop on the injected
//     scheduler reconnects and re-registers until it succeeds or the connection is closed.
//
//   - Pool: One connection per shard on top of an xsync.MapOf. NewTaskPool connects all
//     task connections, NewPushPool creates the push connections for the PushManager.
//
//   - PushManager: Starts (connect, register, heartbeat) and stops (unregister, close)
//     all push connections together and rolls back a partial start.
//
//   - FrameServer: Accept loop handing frames to a handler. Used by the mock gateway.
//
// Thread Safety:
//
//	All exported types are safe for concurrent use. A task connection serializes its
//	callers with a mutex, concurrent callers wait instead of interleaving requests.
package base
