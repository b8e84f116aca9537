package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultHeartbeatMessage is the ping sentinel the gateway answers with DefaultPongMessage
	DefaultHeartbeatMessage = "~6YOt5rW35piO~"
	// DefaultPongMessage is the pong sentinel of the gateway
	DefaultPongMessage = "~572L5rW35piO~"

	// DefaultMaxFrameSize limits the body size of a single frame (128 MiB)
	DefaultMaxFrameSize = 128 * 1024 * 1024

	// DefaultMaxIdleMillisecond should be a few seconds below the read deadline of the gateway,
	// otherwise the gateway drops the connection before it is refreshed
	DefaultMaxIdleMillisecond = 117_000

	// DefaultRecoverIntervalMillisecond is the interval of reconnect attempts of a lost push connection
	DefaultRecoverIntervalMillisecond = 3_000
)

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// SocketConf holds the socket options shared by all stream transports
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ClientTransportConfig bundles the socket tuning applied after a connection is established
type ClientTransportConfig struct {
	// RetryCount is the number of attempts (reconnect + resend) before a send fails
	RetryCount int
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Gateway shard configuration
// --------------------------------------------------------------------------

// ShardConfig describes one gateway shard (one worker endpoint of a gateway instance)
type ShardConfig struct {
	// ShardID is the id encoded in the prefix of every uniqId issued by this shard
	ShardID uint64
	// Endpoint is the address of the worker port of the gateway (host:port or a unix socket path)
	Endpoint string

	SendTimeoutMillisecond    int
	ReceiveTimeoutMillisecond int
	ConnectTimeoutMillisecond int
	// MaxIdleMillisecond is the time after which an unused task connection is reconnected before the next send
	MaxIdleMillisecond int

	HeartbeatIntervalMillisecond int
	HeartbeatMessage             string
	PongMessage                  string

	MaxFrameSize uint32

	Transport ClientTransportConfig
}

// DefaultShardConfig returns the configuration of a shard with all defaults applied
func DefaultShardConfig(shardId uint64, endpoint string) ShardConfig {
	return ShardConfig{
		ShardID:                      shardId,
		Endpoint:                     endpoint,
		SendTimeoutMillisecond:       30_000,
		ReceiveTimeoutMillisecond:    30_000,
		ConnectTimeoutMillisecond:    5_000,
		MaxIdleMillisecond:           DefaultMaxIdleMillisecond,
		HeartbeatIntervalMillisecond: 45_000,
		HeartbeatMessage:             DefaultHeartbeatMessage,
		PongMessage:                  DefaultPongMessage,
		MaxFrameSize:                 DefaultMaxFrameSize,
		Transport: ClientTransportConfig{
			RetryCount: 3,
			TCPConf:    TCPConf{TCPNoDelay: true},
		},
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// SendTimeout returns the write deadline of a single send, 0 disables it
func (c *ShardConfig) SendTimeout() time.Duration { return millis(c.SendTimeoutMillisecond) }

// ReceiveTimeout returns the read deadline of a single receive, 0 disables it
func (c *ShardConfig) ReceiveTimeout() time.Duration { return millis(c.ReceiveTimeoutMillisecond) }

// ConnectTimeout returns the dial timeout, 0 disables it
func (c *ShardConfig) ConnectTimeout() time.Duration { return millis(c.ConnectTimeoutMillisecond) }

// MaxIdle returns the idle time after which a task connection is refreshed, 0 disables the check
func (c *ShardConfig) MaxIdle() time.Duration { return millis(c.MaxIdleMillisecond) }

// FrameSizeLimit returns the largest accepted frame body, DefaultMaxFrameSize if unset
func (c *ShardConfig) FrameSizeLimit() uint32 {
	if c.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

// HeartbeatInterval returns the interval of the heartbeat, 0 disables the heartbeat
func (c *ShardConfig) HeartbeatInterval() time.Duration {
	return millis(c.HeartbeatIntervalMillisecond)
}

// --------------------------------------------------------------------------
// Push connection configuration
// --------------------------------------------------------------------------

// PushConfig configures the registered push connections
type PushConfig struct {
	// Events is the bitmask of events the gateway should forward
	Events Event
	// ProcessCmdGoroutineNum is the number of goroutines the gateway uses for commands of this connection
	ProcessCmdGoroutineNum uint32
	// RecoverIntervalMillisecond is the interval of reconnect attempts after an unexpected close
	RecoverIntervalMillisecond int
}

// DefaultPushConfig subscribes to all events
func DefaultPushConfig() PushConfig {
	return PushConfig{
		Events:                     EventAll,
		ProcessCmdGoroutineNum:     1,
		RecoverIntervalMillisecond: DefaultRecoverIntervalMillisecond,
	}
}

// RecoverInterval returns the interval of the recovery loop.
// Unset values fall back to DefaultRecoverIntervalMillisecond, the loop can not be disabled.
func (c *PushConfig) RecoverInterval() time.Duration {
	if c.RecoverIntervalMillisecond <= 0 {
		return millis(DefaultRecoverIntervalMillisecond)
	}
	return millis(c.RecoverIntervalMillisecond)
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// ClientConfig holds everything needed to talk to a gateway cluster
type ClientConfig struct {
	Shards []ShardConfig
	Push   PushConfig

	// PrefixWidth is the number of hex characters of a uniqId that encode the shard id
	PrefixWidth int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Prefix Width", strconv.Itoa(c.PrefixWidth))
	addField("Log Level", c.LogLevel)

	addSection("Push Connections")
	addField("Events", fmt.Sprintf("%03b", uint32(c.Push.Events)))
	addField("Goroutines", strconv.FormatUint(uint64(c.Push.ProcessCmdGoroutineNum), 10))
	addField("Recover Interval", fmt.Sprintf("%d ms", c.Push.RecoverIntervalMillisecond))

	for _, shard := range c.Shards {
		addSection(fmt.Sprintf("Shard %d", shard.ShardID))
		addField("Endpoint", shard.Endpoint)
		addField("Send Timeout", fmt.Sprintf("%d ms", shard.SendTimeoutMillisecond))
		addField("Receive Timeout", fmt.Sprintf("%d ms", shard.ReceiveTimeoutMillisecond))
		addField("Connect Timeout", fmt.Sprintf("%d ms", shard.ConnectTimeoutMillisecond))
		addField("Max Idle", fmt.Sprintf("%d ms", shard.MaxIdleMillisecond))
		addField("Heartbeat Interval", fmt.Sprintf("%d ms", shard.HeartbeatIntervalMillisecond))
		addField("Retry Count", strconv.Itoa(shard.Transport.RetryCount))
		addField("TCP No Delay", strconv.FormatBool(shard.Transport.TCPNoDelay))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Mock gateway configuration
// --------------------------------------------------------------------------

// GatewayConfig configures one shard of the in-process gateway
type GatewayConfig struct {
	ShardID uint64
	// Transport of the worker port, "tcp" (default) or "unix"
	Transport string
	// WorkerEndpoint is the listen address of the worker port (frames from business processes)
	WorkerEndpoint string
	// WebsocketEndpoint is the listen address of the websocket port (clients)
	WebsocketEndpoint string

	HeartbeatMessage string
	PongMessage      string

	// ReadTimeoutMillisecond closes idle worker connections, 0 disables it
	ReadTimeoutMillisecond int
}

// DefaultGatewayConfig returns a gateway config listening on random local ports
func DefaultGatewayConfig(shardId uint64) GatewayConfig {
	return GatewayConfig{
		ShardID:           shardId,
		Transport:         "tcp",
		WorkerEndpoint:    "127.0.0.1:0",
		WebsocketEndpoint: "127.0.0.1:0",
		HeartbeatMessage:  DefaultHeartbeatMessage,
		PongMessage:       DefaultPongMessage,
	}
}

// String returns a formatted string representation of the gateway configuration
func (c *GatewayConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection(fmt.Sprintf("Gateway Shard %d", c.ShardID))
	addField("Transport", c.Transport)
	addField("Worker Endpoint", c.WorkerEndpoint)
	addField("Websocket Endpoint", c.WebsocketEndpoint)
	addField("Read Timeout", fmt.Sprintf("%d ms", c.ReadTimeoutMillisecond))

	return sb.String()
}
