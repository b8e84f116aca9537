package server

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/netbus/lib/shard"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport/base"
	"github.com/ValentinKolb/netbus/rpc/transport/tcp"
	"github.com/ValentinKolb/netbus/rpc/transport/unix"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("gateway")

// Meter names of the websocket side, worker commands are metered by their name
const (
	MeterOpen    = "open"
	MeterClose   = "close"
	MeterMessage = "message"
)

// RecordedRequest is a worker command as received by the gateway
type RecordedRequest struct {
	Cmd     common.Cmd
	Payload []byte
	// ConnID is the id of the worker connection the command arrived on
	ConnID uint64
}

// GatewayServer is one shard of an in-process websocket gateway.
// It accepts websocket clients on one port and the frames of business processes on the worker port.
type GatewayServer struct {
	config     common.GatewayConfig
	router     shard.IRouter
	serializer serializer.IRPCSerializer

	state    *State
	adapters map[common.Cmd]IGatewayAdapter

	heartbeat []byte
	pong      []byte

	worker    *base.FrameServer
	listener  net.Listener
	http      *http.Server
	upgrader  websocket.Upgrader
	clientSeq atomic.Uint64

	recordMu sync.Mutex
	requests []RecordedRequest

	// mu guards closed and the registration of websocket handlers in wg
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewGatewayServer creates a gateway shard. The uniqIds it issues start with router.Prefix(config.ShardID).
//
// Usage:
//
//	g := server.NewGatewayServer(
//		common.DefaultGatewayConfig(1),
//		shard.NewHexPrefixRouter(0),
//		serializer.NewProtoSerializer(),
//	)
//
//	if err := g.Start(); err != nil {
//		panic(err)
//	}
//	defer g.Close()
func NewGatewayServer(
	config common.GatewayConfig,
	router shard.IRouter,
	serializer serializer.IRPCSerializer,
) *GatewayServer {
	if config.HeartbeatMessage == "" {
		config.HeartbeatMessage = common.DefaultHeartbeatMessage
	}
	if config.PongMessage == "" {
		config.PongMessage = common.DefaultPongMessage
	}

	s := &GatewayServer{
		config:     config,
		router:     router,
		serializer: serializer,
		state:      newState(config.ShardID, serializer),
		adapters:   make(map[common.Cmd]IGatewayAdapter),
		heartbeat:  []byte(config.HeartbeatMessage),
		pong:       []byte(config.PongMessage),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	for _, adapter := range []IGatewayAdapter{
		NewPushServerAdapter(),
		NewSendServerAdapter(),
		NewQueryServerAdapter(),
	} {
		for _, cmd := range adapter.Commands() {
			s.adapters[cmd] = adapter
		}
	}

	Logger.Infof(config.String())
	return s
}

// Start opens the worker port and the websocket port
func (s *GatewayServer) Start() error {
	var connector base.IServerConnector
	switch s.config.Transport {
	case "", "tcp":
		connector = tcp.NewTCPServerConnector()
	case "unix":
		connector = unix.NewUnixServerConnector()
	default:
		return fmt.Errorf("%w: unknown transport %q", common.ErrInvalidArgument, s.config.Transport)
	}

	s.worker = base.NewFrameServer(connector, s.handleFrame)
	s.worker.OnClose(func(conn *base.ServerConn) { s.state.dropPushes(conn.ID()) })
	if s.config.ReadTimeoutMillisecond > 0 {
		s.worker.SetReadTimeout(time.Duration(s.config.ReadTimeoutMillisecond) * time.Millisecond)
	}
	if err := s.worker.Listen(s.config.WorkerEndpoint); err != nil {
		return fmt.Errorf("shard %d: worker port: %w", s.config.ShardID, err)
	}

	listener, err := net.Listen("tcp", s.config.WebsocketEndpoint)
	if err != nil {
		_ = s.worker.Close()
		return fmt.Errorf("shard %d: websocket port: %w", s.config.ShardID, err)
	}
	s.listener = listener

	r := chi.NewRouter()
	r.Get("/ws", s.serveWebsocket)
	s.http = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Shard %d: websocket server stopped: %v", s.config.ShardID, err)
		}
	}()

	Logger.Infof("Shard %d: gateway ready, worker %s, websocket %s", s.config.ShardID, s.WorkerAddr(), s.WebsocketURL())
	return nil
}

// Close disconnects every client and worker connection and waits for their handlers to return
func (s *GatewayServer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if s.http != nil {
		errs = append(errs, s.http.Close())
	}
	s.state.sessions.Range(func(_ string, sess *session) bool {
		_ = sess.conn.Close()
		return true
	})
	s.wg.Wait()

	if s.worker != nil {
		errs = append(errs, s.worker.Close())
	}
	s.state.close()

	Logger.Infof("Shard %d: gateway closed", s.config.ShardID)
	return errors.Join(errs...)
}

// ShardID returns the id of the shard
func (s *GatewayServer) ShardID() uint64 {
	return s.config.ShardID
}

// State returns the state of the shard
func (s *GatewayServer) State() *State {
	return s.state
}

// WorkerAddr returns the address of the worker port
func (s *GatewayServer) WorkerAddr() string {
	if s.worker == nil {
		return ""
	}
	return s.worker.Addr()
}

// WebsocketURL returns the url clients connect to
func (s *GatewayServer) WebsocketURL() string {
	if s.listener == nil {
		return ""
	}
	return "ws://" + s.listener.Addr().String() + "/ws"
}

// Requests returns the worker commands received so far, heartbeats excluded
func (s *GatewayServer) Requests() []RecordedRequest {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// ResetRequests forgets the recorded worker commands
func (s *GatewayServer) ResetRequests() {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	s.requests = nil
}

// --------------------------------------------------------------------------
// Worker port
// --------------------------------------------------------------------------

// handleFrame answers heartbeats and hands commands to their adapter
func (s *GatewayServer) handleFrame(conn *base.ServerConn, body []byte) {
	switch {
	case bytes.Equal(body, s.heartbeat):
		if err := conn.Write(s.pong); err != nil {
			Logger.Debugf("Shard %d: failed to answer heartbeat: %v", s.config.ShardID, err)
		}
		return
	case bytes.Equal(body, s.pong):
		return
	}

	cmd, payload, err := common.UnpackBody(body)
	if err != nil {
		Logger.Warningf("Shard %d: dropping frame from %s: %v", s.config.ShardID, conn.RemoteAddr(), err)
		return
	}

	s.recordMu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Cmd:     cmd,
		Payload: append([]byte(nil), payload...),
		ConnID:  conn.ID(),
	})
	s.recordMu.Unlock()
	s.state.meters.mark(cmd.String(), 1)

	adapter, ok := s.adapters[cmd]
	if !ok {
		Logger.Warningf("Shard %d: unsupported command %s", s.config.ShardID, cmd)
		return
	}

	req := &Request{Cmd: cmd, Payload: payload, Conn: conn, serializer: s.serializer}
	resp, err := adapter.Handle(req, s.state)
	if err != nil {
		Logger.Warningf("Shard %d: %s failed: %v", s.config.ShardID, cmd, err)
		return
	}
	if resp == nil {
		return
	}
	if err := req.Reply(resp); err != nil {
		Logger.Warningf("Shard %d: failed to answer %s: %v", s.config.ShardID, cmd, err)
	}
}

// --------------------------------------------------------------------------
// Websocket port
// --------------------------------------------------------------------------

// serveWebsocket runs one client connection. The first message sent to the client
// is its uniqId as text, every following message is a payload of a worker command.
func (s *GatewayServer) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "gateway closed", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Debugf("Shard %d: websocket upgrade failed: %v", s.config.ShardID, err)
		return
	}

	uniqId := s.router.Prefix(s.config.ShardID) + fmt.Sprintf("%08x", s.clientSeq.Add(1))
	sess := newSession(uniqId, conn)

	// the client is visible to worker commands only after its uniqId was written
	sess.writeMu.Lock()
	s.state.sessions.Store(uniqId, sess)
	_ = conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, []byte(uniqId))
	sess.writeMu.Unlock()

	defer func() {
		s.state.sessions.Delete(uniqId)
		_ = conn.Close()

		info := sess.info()
		s.state.meters.mark(MeterClose, 1)
		s.state.emit(common.CmdConnClose, common.EventOnClose, &common.ConnClose{
			UniqId:     uniqId,
			CustomerId: info.CustomerId,
			Session:    info.Session,
			Topics:     info.Topics,
		})
	}()

	if err != nil {
		Logger.Debugf("Shard %d: failed to greet %s: %v", s.config.ShardID, uniqId, err)
		return
	}

	s.state.meters.mark(MeterOpen, 1)
	s.state.emit(common.CmdConnOpen, common.EventOnOpen, &common.ConnOpen{
		UniqId:        uniqId,
		RawQuery:      r.URL.RawQuery,
		SubProtocol:   websocket.Subprotocols(r),
		XForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:    r.RemoteAddr,
	})

	// Close may have run before the session was stored
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Logger.Debugf("Shard %d: client %s closed: %v", s.config.ShardID, uniqId, err)
			}
			return
		}

		if bytes.Equal(data, s.heartbeat) {
			if err := sess.writeMessage(websocket.TextMessage, s.pong); err != nil {
				return
			}
			continue
		}

		s.state.meters.mark(MeterMessage, 1)
		info := sess.info()
		s.state.emit(common.CmdTransfer, common.EventOnMessage, &common.Transfer{
			UniqId:     uniqId,
			Data:       data,
			Session:    info.Session,
			CustomerId: info.CustomerId,
			Topics:     info.Topics,
		})
	}
}
