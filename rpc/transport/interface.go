package transport

import (
	"github.com/ValentinKolb/netbus/rpc/common"
)

// --------------------------------------------------------------------------
// Connections
// --------------------------------------------------------------------------

// IShardConn is the part every connection to a gateway shard has in common
type IShardConn interface {
	// ShardID returns the id of the shard this connection belongs to
	ShardID() uint64
	// Endpoint returns the worker address of the shard
	Endpoint() string
	// IsConnected returns true if the connection currently holds an open socket
	IsConnected() bool
	// Connect (re)establishes the socket. A previous socket is closed.
	Connect() error
	// Close closes the socket and stops all background work. It is idempotent.
	Close() error
}

// ITaskConn is a request/response connection to one shard.
// Only one request is in flight at any time, the reply to a request is the next
// frame received on the same socket.
type ITaskConn interface {
	IShardConn
	// Send writes one frame body. Idle or broken sockets are reconnected before
	// the write and failed writes are retried a bounded number of times.
	Send(body []byte) error
	// Receive reads one frame body. It returns common.ErrReceiveTimeout if no frame arrived
	// in time and common.ErrNoData if the frame was the heartbeat pong. Both are soft errors.
	Receive() ([]byte, error)
	// Request sends body and waits for the reply, skipping stray heartbeat pongs
	Request(body []byte) ([]byte, error)
	// Heartbeat sends the ping sentinel and consumes the pong
	Heartbeat() error
	// StartHeartbeat runs Heartbeat periodically on the scheduler of the connection
	StartHeartbeat()
}

// IPushConn is a connection registered at a shard to receive client events
type IPushConn interface {
	IShardConn
	// Register announces the connection to the shard and starts the event reader.
	// A rejection by the shard is returned as *common.RegistrationError.
	Register() error
	// Unregister tells the shard to stop forwarding events to this connection.
	// The command is sent over the task connection of the same shard.
	Unregister() error
	// ConnId returns the id the shard assigned during Register, empty if not registered
	ConnId() string
	// StartHeartbeat sends the ping sentinel periodically while connected
	StartHeartbeat()
}

// ITaskConnPool gives access to the task connection of every shard
type ITaskConnPool interface {
	// Get returns the connection of a shard. ok is false if the shard is unknown.
	Get(shardId uint64) (conn ITaskConn, ok bool)
	// All returns all connections ordered by shard id
	All() []ITaskConn
	// Count returns the number of connections
	Count() int
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// IEventHandler receives the client events a shard forwards to a registered push connection.
// The methods are called from the event reader goroutine of the push connection,
// events of one shard are delivered in order.
type IEventHandler interface {
	OnOpen(shardId uint64, msg *common.ConnOpen)
	OnMessage(shardId uint64, msg *common.Transfer)
	OnClose(shardId uint64, msg *common.ConnClose)
}

// EventHandlerFuncs adapts plain functions to IEventHandler. Nil functions drop the event.
type EventHandlerFuncs struct {
	Open    func(shardId uint64, msg *common.ConnOpen)
	Message func(shardId uint64, msg *common.Transfer)
	Close   func(shardId uint64, msg *common.ConnClose)
}

func (h EventHandlerFuncs) OnOpen(shardId uint64, msg *common.ConnOpen) {
	if h.Open != nil {
		h.Open(shardId, msg)
	}
}

func (h EventHandlerFuncs) OnMessage(shardId uint64, msg *common.Transfer) {
	if h.Message != nil {
		h.Message(shardId, msg)
	}
}

func (h EventHandlerFuncs) OnClose(shardId uint64, msg *common.ConnClose) {
	if h.Close != nil {
		h.Close(shardId, msg)
	}
}
