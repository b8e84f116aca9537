package base

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"sync"
	"sync/atomic"
)

// pushConn implements transport.IPushConn.
//
// Every (re)connect creates a new clientConn. The event reader goroutine of a registration
// only ever reads from the socket it was started for, so it can never steal frames from a
// newer registration. gen identifies the current registration.
type pushConn struct {
	connector  IClientConnector
	config     common.ShardConfig
	push       common.PushConfig
	serializer serializer.IRPCSerializer
	handler    transport.IEventHandler
	tasks      transport.ITaskConnPool
	scheduler  scheduler.IScheduler
	ping       []byte
	pong       []byte

	conn   atomic.Pointer[clientConn]
	gen    atomic.Uint64
	closed atomic.Bool

	mu            sync.Mutex // Protects connId, cancelRecover and the connect/register sequence
	connId        string
	cancelRecover scheduler.CancelFunc

	heartbeatMu     sync.Mutex
	cancelHeartbeat scheduler.CancelFunc
}

// NewPushConn creates a push connection to a shard. Events are delivered to handler,
// Unregister uses the task connection of the same shard in tasks.
func NewPushConn(
	connector IClientConnector,
	config common.ShardConfig,
	push common.PushConfig,
	serializer serializer.IRPCSerializer,
	handler transport.IEventHandler,
	tasks transport.ITaskConnPool,
	s scheduler.IScheduler,
) transport.IPushConn {
	return newPushConn(connector, config, push, serializer, handler, tasks, s)
}

func newPushConn(
	connector IClientConnector,
	config common.ShardConfig,
	push common.PushConfig,
	serializer serializer.IRPCSerializer,
	handler transport.IEventHandler,
	tasks transport.ITaskConnPool,
	s scheduler.IScheduler,
) *pushConn {
	ping, pong := sentinels(config)
	return &pushConn{
		connector:  connector,
		config:     config,
		push:       push,
		serializer: serializer,
		handler:    handler,
		tasks:      tasks,
		scheduler:  s,
		ping:       ping,
		pong:       pong,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPushConn)
// --------------------------------------------------------------------------

func (p *pushConn) ShardID() uint64 {
	return p.config.ShardID
}

func (p *pushConn) Endpoint() string {
	return p.config.Endpoint
}

func (p *pushConn) IsConnected() bool {
	conn := p.conn.Load()
	return conn != nil && conn.isConnected()
}

func (p *pushConn) ConnId() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connId
}

func (p *pushConn) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *pushConn) Register() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registerLocked()
}

func (p *pushConn) Unregister() error {
	connId := p.ConnId()
	if connId == "" {
		return nil
	}

	task, ok := p.tasks.Get(p.config.ShardID)
	if !ok {
		return fmt.Errorf("unregister on shard %d: %w: no task connection", p.config.ShardID, common.ErrShardUnavailable)
	}

	payload, err := p.serializer.Serialize(&common.UnRegisterReq{ConnId: connId})
	if err != nil {
		return fmt.Errorf("unregister on shard %d: %w", p.config.ShardID, err)
	}

	resp, err := task.Request(common.PackBody(common.CmdUnregister, payload))
	if err != nil {
		return fmt.Errorf("unregister on shard %d: %w", p.config.ShardID, err)
	}
	if cmd, _, err := common.UnpackBody(resp); err != nil || cmd != common.CmdUnregister {
		return fmt.Errorf("unregister on shard %d: %w: unexpected reply %s", p.config.ShardID, common.ErrProtocol, cmd)
	}

	p.mu.Lock()
	if p.connId == connId {
		p.connId = ""
	}
	p.mu.Unlock()

	Logger.Infof("Unregistered push connection %s on shard %d", connId, p.config.ShardID)
	return nil
}

func (p *pushConn) StartHeartbeat() {
	p.heartbeatMu.Lock()
	defer p.heartbeatMu.Unlock()

	if p.cancelHeartbeat != nil || p.closed.Load() {
		return
	}

	p.cancelHeartbeat = p.scheduler.Every(p.config.HeartbeatInterval(), func() {
		conn := p.conn.Load()
		if conn == nil || !conn.isConnected() {
			return
		}
		// the pong is read and dropped by the event reader
		if err := conn.send(p.ping); err != nil {
			Logger.Warningf("Heartbeat of push connection to shard %d failed: %v", p.config.ShardID, err)
		}
	})
}

func (p *pushConn) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.stopHeartbeat()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopRecoveryLocked()
	p.connId = ""

	conn := p.conn.Load()
	if conn == nil {
		return nil
	}
	return conn.close()
}

// --------------------------------------------------------------------------
// Connection and registration
// --------------------------------------------------------------------------

// connectLocked replaces the current socket with a new one
func (p *pushConn) connectLocked() error {
	if p.closed.Load() {
		return fmt.Errorf("push connection to shard %d: %w", p.config.ShardID, common.ErrConnectionClosed)
	}

	conn := newClientConn(p.connector, p.config)
	if err := conn.connect(); err != nil {
		return err
	}

	if old := p.conn.Swap(conn); old != nil {
		_ = old.close()
	}
	p.connId = ""
	return nil
}

// registerLocked sends the register command and waits for the reply.
// On success the event reader is started for the current socket.
func (p *pushConn) registerLocked() error {
	if p.closed.Load() {
		return fmt.Errorf("push connection to shard %d: %w", p.config.ShardID, common.ErrConnectionClosed)
	}

	conn := p.conn.Load()
	if conn == nil || !conn.isConnected() {
		return fmt.Errorf("register on shard %d: %w", p.config.ShardID, common.ErrNotConnected)
	}

	payload, err := p.serializer.Serialize(&common.RegisterReq{
		Events:                 p.push.Events,
		ProcessCmdGoroutineNum: p.push.ProcessCmdGoroutineNum,
	})
	if err != nil {
		return fmt.Errorf("register on shard %d: %w", p.config.ShardID, err)
	}

	if err := conn.send(common.PackBody(common.CmdRegister, payload)); err != nil {
		return fmt.Errorf("register on shard %d: %w", p.config.ShardID, err)
	}

	resp, err := p.awaitReply(conn, common.CmdRegister)
	if err != nil {
		return fmt.Errorf("register on shard %d: %w", p.config.ShardID, err)
	}

	var result common.RegisterResp
	if err := p.serializer.Deserialize(resp, &result); err != nil {
		return fmt.Errorf("register on shard %d: %w: %v", p.config.ShardID, common.ErrProtocol, err)
	}

	if result.Code != 0 {
		return &common.RegistrationError{ShardID: p.config.ShardID, Code: result.Code, Message: result.Message}
	}

	p.connId = result.ConnId
	gen := p.gen.Add(1)
	go p.readEvents(conn, gen)

	Logger.Infof("Registered push connection %s on shard %d", result.ConnId, p.config.ShardID)
	return nil
}

// awaitReply reads frames until the reply to cmd arrives and returns its payload.
// Up to maxStrayFrames heartbeat pongs are skipped.
func (p *pushConn) awaitReply(conn *clientConn, cmd common.Cmd) ([]byte, error) {
	for stray := 0; ; {
		body, err := conn.receive()
		if err != nil {
			return nil, err
		}

		if bytes.Equal(body, p.pong) {
			if stray++; stray > maxStrayFrames {
				return nil, fmt.Errorf("%w: only heartbeats received", common.ErrProtocol)
			}
			continue
		}

		got, payload, err := common.UnpackBody(body)
		if err != nil {
			return nil, err
		}
		if got != cmd {
			return nil, fmt.Errorf("%w: expected reply %s, got %s", common.ErrProtocol, cmd, got)
		}
		return payload, nil
	}
}

// --------------------------------------------------------------------------
// Event reader
// --------------------------------------------------------------------------

// readEvents dispatches the frames of one registration until its socket fails
func (p *pushConn) readEvents(conn *clientConn, gen uint64) {
	for {
		if p.closed.Load() || p.gen.Load() != gen {
			return
		}

		body, err := conn.receive()
		if err != nil {
			if common.IsSoft(err) {
				continue
			}
			p.lost(gen, err)
			return
		}

		p.dispatch(body)
	}
}

// dispatch decodes one frame and hands it to the event handler
func (p *pushConn) dispatch(body []byte) {
	if bytes.Equal(body, p.pong) {
		return
	}

	cmd, payload, err := common.UnpackBody(body)
	if err != nil {
		Logger.Debugf("Dropping malformed frame from shard %d: %v", p.config.ShardID, err)
		return
	}
	common.ObserveEvent(cmd, p.config.ShardID)

	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Event handler panicked on %s from shard %d: %v", cmd, p.config.ShardID, r)
		}
	}()

	switch cmd {
	case common.CmdTransfer:
		var msg common.Transfer
		if p.decode(cmd, payload, &msg) {
			p.handler.OnMessage(p.config.ShardID, &msg)
		}
	case common.CmdConnOpen:
		var msg common.ConnOpen
		if p.decode(cmd, payload, &msg) {
			p.handler.OnOpen(p.config.ShardID, &msg)
		}
	case common.CmdConnClose:
		var msg common.ConnClose
		if p.decode(cmd, payload, &msg) {
			p.handler.OnClose(p.config.ShardID, &msg)
		}
	default:
		Logger.Debugf("Dropping frame with unexpected command %s from shard %d", cmd, p.config.ShardID)
	}
}

func (p *pushConn) decode(cmd common.Cmd, payload []byte, msg common.Message) bool {
	if err := p.serializer.Deserialize(payload, msg); err != nil {
		Logger.Warningf("Dropping undecodable %s event from shard %d: %v", cmd, p.config.ShardID, err)
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// lost is called by the event reader of registration gen after a hard receive error
func (p *pushConn) lost(gen uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() || p.gen.Load() != gen {
		return
	}

	Logger.Warningf("Push connection to shard %d lost: %v", p.config.ShardID, err)
	p.connId = ""
	p.startRecoveryLocked()
}

func (p *pushConn) startRecoveryLocked() {
	if p.cancelRecover != nil {
		return
	}
	p.cancelRecover = p.scheduler.Every(p.push.RecoverInterval(), p.recover)
}

func (p *pushConn) stopRecoveryLocked() {
	if p.cancelRecover != nil {
		p.cancelRecover()
		p.cancelRecover = nil
	}
}

// recover is one attempt of the recovery loop
func (p *pushConn) recover() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		p.stopRecoveryLocked()
		return
	}

	if err := p.connectLocked(); err != nil {
		Logger.Warningf("Reconnect of push connection to shard %d failed: %v", p.config.ShardID, err)
		return
	}

	if err := p.registerLocked(); err != nil {
		var regErr *common.RegistrationError
		if errors.As(err, &regErr) {
			Logger.Errorf("Giving up recovery of push connection to shard %d: %v", p.config.ShardID, err)
			p.stopRecoveryLocked()
			return
		}
		Logger.Warningf("Re-register of push connection to shard %d failed: %v", p.config.ShardID, err)
		return
	}

	p.stopRecoveryLocked()
	Logger.Infof("Push connection to shard %d recovered", p.config.ShardID)
}

func (p *pushConn) stopHeartbeat() {
	p.heartbeatMu.Lock()
	defer p.heartbeatMu.Unlock()

	if p.cancelHeartbeat != nil {
		p.cancelHeartbeat()
		p.cancelHeartbeat = nil
	}
}
