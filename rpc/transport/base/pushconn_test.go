package base

import (
	"errors"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"testing"
	"time"
)

// recordedEvent is one event seen by the test handler
type recordedEvent struct {
	kind   string
	uniqId string
	data   string
}

// newRecordingHandler returns a handler writing every event to the returned channel
func newRecordingHandler() (transport.IEventHandler, chan recordedEvent) {
	events := make(chan recordedEvent, 16)
	return transport.EventHandlerFuncs{
		Open: func(_ uint64, msg *common.ConnOpen) {
			events <- recordedEvent{kind: "open", uniqId: msg.UniqId}
		},
		Message: func(_ uint64, msg *common.Transfer) {
			events <- recordedEvent{kind: "message", uniqId: msg.UniqId, data: string(msg.Data)}
		},
		Close: func(_ uint64, msg *common.ConnClose) {
			events <- recordedEvent{kind: "close", uniqId: msg.UniqId}
		},
	}, events
}

// pushFixture bundles a push connection with its task pool and scheduler
type pushFixture struct {
	gateway *testGateway
	sched   *scheduler.ManualScheduler
	tasks   *Pool[transport.ITaskConn]
	push    *pushConn
}

func newPushFixture(t *testing.T, handler transport.IEventHandler) *pushFixture {
	t.Helper()
	return newPushFixtureWith(t, handler, common.DefaultPushConfig())
}

func newPushFixtureWith(t *testing.T, handler transport.IEventHandler, pushConfig common.PushConfig) *pushFixture {
	t.Helper()

	g := newTestGateway(t)
	sched := scheduler.NewManualScheduler()
	config := testShardConfig(1, g.addr())

	// the task heartbeats run on their own scheduler, sched only sees push connection tasks
	tasks, err := NewTaskPool(&testConnector{}, []common.ShardConfig{config}, scheduler.NewManualScheduler())
	if err != nil {
		t.Fatalf("NewTaskPool failed: %v", err)
	}
	t.Cleanup(func() { _ = tasks.Close() })

	push := newPushConn(&testConnector{}, config, pushConfig,
		serializer.NewProtoSerializer(), handler, tasks, sched)
	t.Cleanup(func() { _ = push.Close() })

	return &pushFixture{gateway: g, sched: sched, tasks: tasks, push: push}
}

// expectEvent waits for the next event and compares it
func expectEvent(t *testing.T, events chan recordedEvent, expected recordedEvent) {
	t.Helper()

	select {
	case got := <-events:
		if got != expected {
			t.Errorf("Expected event %+v, got %+v", expected, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timeout waiting for event %+v", expected)
	}
}

// TestPushRegisterAndEvents tests registration and event demultiplexing
func TestPushRegisterAndEvents(t *testing.T) {
	handler, events := newRecordingHandler()
	f := newPushFixture(t, handler)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	connId := f.push.ConnId()
	if connId == "" {
		t.Fatal("Expected a connection id after Register")
	}

	f.gateway.emit(connId, common.CmdConnOpen, &common.ConnOpen{UniqId: "01a"})
	// pongs and unknown commands are dropped
	if err := f.gateway.pushConnOf(connId).Write([]byte(common.DefaultPongMessage)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f.gateway.emit(connId, common.CmdBroadcast, &common.Broadcast{Data: []byte("ignored")})
	f.gateway.emit(connId, common.CmdTransfer, &common.Transfer{UniqId: "01a", Data: []byte("hi")})
	f.gateway.emit(connId, common.CmdConnClose, &common.ConnClose{UniqId: "01a"})

	expectEvent(t, events, recordedEvent{kind: "open", uniqId: "01a"})
	expectEvent(t, events, recordedEvent{kind: "message", uniqId: "01a", data: "hi"})
	expectEvent(t, events, recordedEvent{kind: "close", uniqId: "01a"})
}

// TestPushRegisterRejected tests that a rejected registration is a RegistrationError
func TestPushRegisterRejected(t *testing.T) {
	handler, _ := newRecordingHandler()
	f := newPushFixture(t, handler)
	f.gateway.registerCode.Store(3)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	err := f.push.Register()
	var regErr *common.RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("Expected RegistrationError, got %v", err)
	}
	if regErr.Code != 3 || regErr.ShardID != 1 || regErr.Message != "rejected" {
		t.Errorf("Unexpected RegistrationError %+v", regErr)
	}
	if f.push.ConnId() != "" {
		t.Error("Rejected connection must not have a connection id")
	}
}

// TestPushUnregisterUsesTaskConn tests that Unregister is sent over the task connection
func TestPushUnregisterUsesTaskConn(t *testing.T) {
	handler, _ := newRecordingHandler()
	f := newPushFixture(t, handler)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	connId := f.push.ConnId()
	pushSide := f.gateway.pushConnOf(connId)

	if err := f.push.Unregister(); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	f.gateway.mu.Lock()
	calls := append([]unregisterCall(nil), f.gateway.unregister...)
	f.gateway.mu.Unlock()

	if len(calls) != 1 || calls[0].connId != connId {
		t.Fatalf("Expected one unregister of %s, got %+v", connId, calls)
	}
	if calls[0].connID == pushSide.ID() {
		t.Error("Unregister must not be sent over the push connection")
	}
	if f.push.ConnId() != "" {
		t.Error("Connection id must be cleared after Unregister")
	}

	// nothing left to unregister
	if err := f.push.Unregister(); err != nil {
		t.Errorf("Second Unregister failed: %v", err)
	}
}

// TestPushUnregisterWithoutTaskConn tests that a missing task connection is reported
func TestPushUnregisterWithoutTaskConn(t *testing.T) {
	handler, _ := newRecordingHandler()
	f := newPushFixture(t, handler)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := f.tasks.Close(); err != nil {
		t.Fatalf("Closing the task pool failed: %v", err)
	}

	if err := f.push.Unregister(); !errors.Is(err, common.ErrShardUnavailable) {
		t.Errorf("Expected ErrShardUnavailable, got %v", err)
	}
}

// TestPushHandlerPanic tests that a panicking handler does not stop the event reader
func TestPushHandlerPanic(t *testing.T) {
	events := make(chan string, 4)
	handler := transport.EventHandlerFuncs{
		Message: func(_ uint64, msg *common.Transfer) {
			if string(msg.Data) == "boom" {
				panic("boom")
			}
			events <- string(msg.Data)
		},
	}
	f := newPushFixture(t, handler)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	connId := f.push.ConnId()
	f.gateway.emit(connId, common.CmdTransfer, &common.Transfer{UniqId: "01a", Data: []byte("boom")})
	f.gateway.emit(connId, common.CmdTransfer, &common.Transfer{UniqId: "01a", Data: []byte("still alive")})

	select {
	case got := <-events:
		if got != "still alive" {
			t.Errorf("Expected second message, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Event reader stopped after a handler panic")
	}
}

// TestPushRecovery tests that a lost push connection is reconnected and registered again
func TestPushRecovery(t *testing.T) {
	handler, events := newRecordingHandler()
	f := newPushFixture(t, handler)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	first := f.push.ConnId()

	// the shard drops the connection
	_ = f.gateway.pushConnOf(first).Close()
	waitFor(t, "recovery loop", func() bool { return f.sched.Pending() == 1 })

	if f.push.ConnId() != "" {
		t.Error("Lost connection must not keep its connection id")
	}

	f.sched.Advance(time.Duration(common.DefaultPushConfig().RecoverIntervalMillisecond) * time.Millisecond)

	second := f.push.ConnId()
	if second == "" || second == first {
		t.Fatalf("Expected a new registration, got %q (first %q)", second, first)
	}
	if f.sched.Pending() != 0 {
		t.Errorf("Recovery loop must stop after success, %d tasks pending", f.sched.Pending())
	}
	if got := f.gateway.registers.Load(); got != 2 {
		t.Errorf("Expected 2 registrations, got %d", got)
	}

	f.gateway.emit(second, common.CmdTransfer, &common.Transfer{UniqId: "01b", Data: []byte("again")})
	expectEvent(t, events, recordedEvent{kind: "message", uniqId: "01b", data: "again"})
}

// TestPushRecoveryUnsetInterval tests that a push config without a recover interval still recovers
func TestPushRecoveryUnsetInterval(t *testing.T) {
	handler, _ := newRecordingHandler()
	f := newPushFixtureWith(t, handler, common.PushConfig{Events: common.EventAll})

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	first := f.push.ConnId()

	_ = f.gateway.pushConnOf(first).Close()
	waitFor(t, "recovery loop", func() bool { return f.sched.Pending() == 1 })

	f.sched.Advance(common.DefaultRecoverIntervalMillisecond * time.Millisecond)

	if second := f.push.ConnId(); second == "" || second == first {
		t.Fatalf("Expected a new registration, got %q (first %q)", second, first)
	}
	if !f.push.IsConnected() {
		t.Error("Push connection must be connected after recovery")
	}
}

// TestPushCloseStopsRecovery tests that Close makes the recovery loop inert
func TestPushCloseStopsRecovery(t *testing.T) {
	handler, _ := newRecordingHandler()
	f := newPushFixture(t, handler)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_ = f.gateway.pushConnOf(f.push.ConnId()).Close()
	waitFor(t, "recovery loop", func() bool { return f.sched.Pending() == 1 })

	if err := f.push.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if f.sched.Pending() != 0 {
		t.Errorf("Close must cancel the recovery loop, %d tasks pending", f.sched.Pending())
	}

	f.sched.Advance(time.Minute)
	if got := f.gateway.registers.Load(); got != 1 {
		t.Errorf("No registration may happen after Close, got %d", got)
	}
	if err := f.push.Connect(); !errors.Is(err, common.ErrConnectionClosed) {
		t.Errorf("Connect after Close must fail with ErrConnectionClosed, got %v", err)
	}
}

// TestPushHeartbeat tests that heartbeats are sent on the push connection
func TestPushHeartbeat(t *testing.T) {
	handler, _ := newRecordingHandler()
	f := newPushFixture(t, handler)

	if err := f.push.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := f.push.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	f.push.StartHeartbeat()
	f.push.StartHeartbeat() // idempotent
	if f.sched.Pending() != 1 {
		t.Fatalf("Expected one scheduled heartbeat, got %d", f.sched.Pending())
	}

	f.sched.Advance(2 * time.Second)
	waitFor(t, "pings", func() bool { return f.gateway.pings.Load() == 2 })

	if err := f.push.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if f.sched.Pending() != 0 {
		t.Errorf("Close must cancel the heartbeat, %d tasks pending", f.sched.Pending())
	}
}
