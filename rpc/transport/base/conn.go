package base

import (
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection, a timeout of 0 disables the dial timeout
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientTransportConfig) error
}

// -----------------------------------------------------------
// Connection state
// -----------------------------------------------------------

// ConnState is the state of a single socket to a shard
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// -----------------------------------------------------------
// clientConn
// -----------------------------------------------------------

// clientConn is a single socket to a shard with frame level send and receive.
// Every failed send and every hard receive error drops the socket, it has to be
// reconnected before it can be used again.
type clientConn struct {
	connector IClientConnector
	config    common.ShardConfig

	connMu sync.Mutex // Protects conn and reader
	conn   net.Conn
	reader *FrameReader

	writeMu sync.Mutex // Serializes frames written to the socket
	state   atomic.Int32
}

func newClientConn(connector IClientConnector, config common.ShardConfig) *clientConn {
	return &clientConn{
		connector: connector,
		config:    config,
	}
}

// connect dials a new socket and replaces the current one
func (c *clientConn) connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state.Store(int32(StateConnecting))

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
	}

	conn, err := c.connector.Connect(c.config.Endpoint, c.config.ConnectTimeout())
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		common.ObserveReconnect(c.config.ShardID, err)
		return fmt.Errorf("%w: %s endpoint %s of shard %d: %v", common.ErrConnect, c.connector.GetName(), c.config.Endpoint, c.config.ShardID, err)
	}

	if err := c.connector.UpgradeConnection(conn, c.config.Transport); err != nil {
		_ = conn.Close()
		c.state.Store(int32(StateDisconnected))
		common.ObserveReconnect(c.config.ShardID, err)
		return fmt.Errorf("%w: failed to upgrade connection to shard %d: %v", common.ErrConnect, c.config.ShardID, err)
	}

	c.conn = conn
	c.reader = NewFrameReader(conn, c.config.FrameSizeLimit())
	c.state.Store(int32(StateConnected))
	common.ObserveReconnect(c.config.ShardID, nil)

	Logger.Debugf("Connected to shard %d at %s (%s)", c.config.ShardID, c.config.Endpoint, c.connector.GetName())
	return nil
}

// current returns the socket and its reader, both are nil if disconnected
func (c *clientConn) current() (net.Conn, *FrameReader) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn, c.reader
}

func (c *clientConn) getState() ConnState {
	return ConnState(c.state.Load())
}

func (c *clientConn) isConnected() bool {
	return c.getState() == StateConnected
}

// send writes body as one frame within the send timeout
func (c *clientConn) send(body []byte) error {
	conn, _ := c.current()
	if conn == nil {
		return fmt.Errorf("%w: shard %d: %w", common.ErrSend, c.config.ShardID, common.ErrNotConnected)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout := c.config.SendTimeout(); timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			c.invalidate(conn)
			return fmt.Errorf("%w: failed to set write deadline: %v", common.ErrSend, err)
		}
	}

	if err := WriteFrame(conn, body); err != nil {
		c.invalidate(conn)
		return fmt.Errorf("%w: shard %d: %v", common.ErrSend, c.config.ShardID, err)
	}
	return nil
}

// receive reads one frame within the receive timeout.
// Soft errors keep the socket, all other errors drop it.
func (c *clientConn) receive() ([]byte, error) {
	conn, reader := c.current()
	if conn == nil {
		return nil, fmt.Errorf("shard %d: %w", c.config.ShardID, common.ErrNotConnected)
	}

	deadline := time.Time{}
	if timeout := c.config.ReceiveTimeout(); timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		c.invalidate(conn)
		return nil, fmt.Errorf("%w: failed to set read deadline: %v", common.ErrConnectionClosed, err)
	}

	body, err := reader.ReadFrame()
	if err != nil {
		if !common.IsSoft(err) {
			c.invalidate(conn)
		}
		return nil, err
	}
	return body, nil
}

// invalidate closes conn if it is still the current socket
func (c *clientConn) invalidate(conn net.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != conn {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.state.Store(int32(StateDisconnected))
}

// close closes the current socket. It is idempotent.
func (c *clientConn) close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state.Store(int32(StateDisconnected))
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
