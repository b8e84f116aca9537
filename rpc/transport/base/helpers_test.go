package base

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Test connectors
// --------------------------------------------------------------------------

// testConnector dials TCP and counts the dials
type testConnector struct {
	dials atomic.Int32
	fail  atomic.Bool
	// failEndpoint always refuses
	failEndpoint string
}

func (c *testConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	c.dials.Add(1)
	if c.fail.Load() || endpoint == c.failEndpoint {
		return nil, errors.New("connection refused")
	}
	return net.DialTimeout("tcp", endpoint, timeout)
}

func (c *testConnector) GetName() string {
	return "test"
}

func (c *testConnector) UpgradeConnection(net.Conn, common.ClientTransportConfig) error {
	return nil
}

// testServerConnector listens on TCP
type testServerConnector struct{}

func (c *testServerConnector) Listen(endpoint string) (net.Listener, error) {
	return net.Listen("tcp", endpoint)
}

func (c *testServerConnector) GetName() string {
	return "test"
}

func (c *testServerConnector) UpgradeConnection(net.Conn) error {
	return nil
}

// --------------------------------------------------------------------------
// Test gateway
// --------------------------------------------------------------------------

// testGateway is a minimal shard: it answers pings, registers push connections
// and echoes every other frame
type testGateway struct {
	t          *testing.T
	server     *FrameServer
	serializer serializer.IRPCSerializer

	// registerCode is returned for every registration
	registerCode atomic.Int32
	// silent frames are not answered
	silent []byte
	// pongFirst frames are answered with a pong before the echo
	pongFirst []byte

	pings      atomic.Int32
	registers  atomic.Int32
	mu         sync.Mutex
	registered map[string]*ServerConn
	unregister []unregisterCall
}

type unregisterCall struct {
	connId string
	connID uint64 // id of the server side connection the command arrived on
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	g := &testGateway{
		t:          t,
		serializer: serializer.NewProtoSerializer(),
		registered: make(map[string]*ServerConn),
		silent:     []byte("silent"),
		pongFirst:  []byte("pong-first"),
	}
	g.server = NewFrameServer(&testServerConnector{}, g.handle)
	if err := g.server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start test gateway: %v", err)
	}
	t.Cleanup(func() { _ = g.server.Close() })
	return g
}

func (g *testGateway) handle(conn *ServerConn, body []byte) {
	switch {
	case bytes.Equal(body, []byte(common.DefaultHeartbeatMessage)):
		g.pings.Add(1)
		_ = conn.Write([]byte(common.DefaultPongMessage))
		return
	case bytes.Equal(body, g.silent):
		return
	case bytes.Equal(body, g.pongFirst):
		_ = conn.Write([]byte(common.DefaultPongMessage))
		_ = conn.Write(body)
		return
	}

	cmd, payload, err := common.UnpackBody(body)
	if err != nil {
		_ = conn.Write(body)
		return
	}

	switch cmd {
	case common.CmdRegister:
		g.registers.Add(1)
		resp := common.RegisterResp{Code: g.registerCode.Load()}
		if resp.Code == 0 {
			resp.ConnId = fmt.Sprintf("push-%d", conn.ID())
			g.mu.Lock()
			g.registered[resp.ConnId] = conn
			g.mu.Unlock()
		} else {
			resp.Message = "rejected"
		}
		out, _ := g.serializer.Serialize(&resp)
		_ = conn.Write(common.PackBody(common.CmdRegister, out))
	case common.CmdUnregister:
		var req common.UnRegisterReq
		if err := g.serializer.Deserialize(payload, &req); err != nil {
			g.t.Errorf("Invalid unregister payload: %v", err)
		}
		g.mu.Lock()
		delete(g.registered, req.ConnId)
		g.unregister = append(g.unregister, unregisterCall{connId: req.ConnId, connID: conn.ID()})
		g.mu.Unlock()
		_ = conn.Write(common.PackBody(common.CmdUnregister, nil))
	default:
		_ = conn.Write(body)
	}
}

func (g *testGateway) addr() string {
	return g.server.Addr()
}

// pushConnOf returns the server side of a registered push connection
func (g *testGateway) pushConnOf(connId string) *ServerConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registered[connId]
}

// emit sends an event to a registered push connection
func (g *testGateway) emit(connId string, cmd common.Cmd, msg common.Message) {
	g.t.Helper()

	conn := g.pushConnOf(connId)
	if conn == nil {
		g.t.Fatalf("Push connection %s is not registered", connId)
	}
	var payload []byte
	if msg != nil {
		payload, _ = g.serializer.Serialize(msg)
	}
	if err := conn.Write(common.PackBody(cmd, payload)); err != nil {
		g.t.Fatalf("Failed to emit %s: %v", cmd, err)
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// testShardConfig returns a shard config with short timeouts
func testShardConfig(shardId uint64, endpoint string) common.ShardConfig {
	config := common.DefaultShardConfig(shardId, endpoint)
	config.SendTimeoutMillisecond = 1000
	config.ReceiveTimeoutMillisecond = 1000
	config.ConnectTimeoutMillisecond = 1000
	config.HeartbeatIntervalMillisecond = 1000
	return config
}

// waitFor polls cond until it is true or the timeout expires
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
