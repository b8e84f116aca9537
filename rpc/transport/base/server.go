package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn) error
}

// ServerHandleFunc handles one frame body received on conn.
// Frames of one connection are handled sequentially in the order they arrived.
type ServerHandleFunc func(conn *ServerConn, body []byte)

// -----------------------------------------------------------
// ServerConn
// -----------------------------------------------------------

// ServerConn is an accepted connection of a FrameServer
type ServerConn struct {
	id           uint64
	conn         net.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

// ID returns the id of the connection, unique per server
func (c *ServerConn) ID() uint64 {
	return c.id
}

// RemoteAddr returns the address of the peer
func (c *ServerConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Write sends body as one frame. It is safe for concurrent use.
func (c *ServerConn) Write(body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %v", err)
		}
	}
	return WriteFrame(c.conn, body)
}

// Close closes the connection, the read loop of the server ends afterwards
func (c *ServerConn) Close() error {
	return c.conn.Close()
}

// -----------------------------------------------------------
// FrameServer
// -----------------------------------------------------------

// FrameServer accepts connections and hands every received frame to a handler
type FrameServer struct {
	connector    IServerConnector
	handler      ServerHandleFunc
	onClose      func(conn *ServerConn)
	readTimeout  time.Duration
	writeTimeout time.Duration

	listener net.Listener
	conns    *xsync.MapOf[uint64, *ServerConn]
	nextId   atomic.Uint64
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// NewFrameServer creates a server handing frames to handler
func NewFrameServer(connector IServerConnector, handler ServerHandleFunc) *FrameServer {
	return &FrameServer{
		connector:    connector,
		handler:      handler,
		writeTimeout: 10 * time.Second,
		conns:        xsync.NewMapOf[uint64, *ServerConn](),
	}
}

// OnClose registers fn to be called after a connection was closed. Must be called before Listen.
func (s *FrameServer) OnClose(fn func(conn *ServerConn)) {
	s.onClose = fn
}

// SetReadTimeout closes connections that send no frame for d. Must be called before Listen.
func (s *FrameServer) SetReadTimeout(d time.Duration) {
	s.readTimeout = d
}

// Listen creates the listener and accepts connections in the background
func (s *FrameServer) Listen(endpoint string) error {
	listener, err := s.connector.Listen(endpoint)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	s.listener = listener

	Logger.Infof("Starting %s frame server on %s", s.connector.GetName(), listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the address the server listens on
func (s *FrameServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting, closes every connection and waits for the handlers to return
func (s *FrameServer) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.conns.Range(func(_ uint64, conn *ServerConn) bool {
		_ = conn.Close()
		return true
	})

	s.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *FrameServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := s.connector.UpgradeConnection(conn); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		sc := &ServerConn{
			id:           s.nextId.Add(1),
			conn:         conn,
			writeTimeout: s.writeTimeout,
		}
		s.conns.Store(sc.id, sc)

		s.wg.Add(1)
		go s.handleConnection(sc)
	}
}

// handleConnection reads frames of one connection until it fails
func (s *FrameServer) handleConnection(sc *ServerConn) {
	defer s.wg.Done()
	defer func() {
		_ = sc.Close()
		s.conns.Delete(sc.id)
		if s.onClose != nil {
			s.onClose(sc)
		}
	}()

	reader := NewFrameReader(sc.conn, common.DefaultMaxFrameSize)

	for {
		if s.readTimeout > 0 {
			if err := sc.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				return
			}
		}

		body, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, common.ErrReceiveTimeout) {
				Logger.Debugf("Closing idle connection %d from %s", sc.id, sc.RemoteAddr())
			} else if !s.closed.Load() {
				Logger.Debugf("Connection %d from %s closed: %v", sc.id, sc.RemoteAddr(), err)
			}
			return
		}

		s.handler(sc, body)
	}
}
