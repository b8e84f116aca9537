package base

import (
	"errors"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/rpc/common"
	"sync"
	"testing"
	"time"
)

// newTestTaskConn creates a connected task connection to the test gateway
func newTestTaskConn(t *testing.T, g *testGateway, config common.ShardConfig) (*taskConn, *testConnector) {
	t.Helper()

	connector := &testConnector{}
	conn := newTaskConn(connector, config, scheduler.NewManualScheduler())
	conn.backoff = time.Millisecond
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, connector
}

// TestTaskConnRequest tests a plain request/response exchange
func TestTaskConnRequest(t *testing.T) {
	g := newTestGateway(t)
	conn, _ := newTestTaskConn(t, g, testShardConfig(1, g.addr()))

	for _, msg := range []string{"first", "second", "third"} {
		resp, err := conn.Request([]byte(msg))
		if err != nil {
			t.Fatalf("Request(%q) failed: %v", msg, err)
		}
		if string(resp) != msg {
			t.Errorf("Request(%q) = %q", msg, resp)
		}
	}
}

// TestTaskConnPongIsNoData tests that a pong is reported as no data and skipped by Request
func TestTaskConnPongIsNoData(t *testing.T) {
	g := newTestGateway(t)
	conn, _ := newTestTaskConn(t, g, testShardConfig(1, g.addr()))

	t.Run("Receive", func(t *testing.T) {
		if err := conn.Send(g.pongFirst); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if _, err := conn.Receive(); !errors.Is(err, common.ErrNoData) {
			t.Fatalf("Expected ErrNoData for the pong, got %v", err)
		}
		body, err := conn.Receive()
		if err != nil || string(body) != string(g.pongFirst) {
			t.Errorf("Expected reply after the pong, got %q, %v", body, err)
		}
	})

	t.Run("Request", func(t *testing.T) {
		resp, err := conn.Request(g.pongFirst)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if string(resp) != string(g.pongFirst) {
			t.Errorf("Request() = %q", resp)
		}
	})
}

// TestTaskConnIdleReconnect tests that an idle connection is replaced before the next send
func TestTaskConnIdleReconnect(t *testing.T) {
	g := newTestGateway(t)

	config := testShardConfig(1, g.addr())
	config.MaxIdleMillisecond = 1000
	conn, connector := newTestTaskConn(t, g, config)

	var mu sync.Mutex
	now := time.Now()
	conn.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	if _, err := conn.Request([]byte("a")); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if got := connector.dials.Load(); got != 1 {
		t.Fatalf("Expected 1 dial, got %d", got)
	}

	advance(500 * time.Millisecond)
	if _, err := conn.Request([]byte("b")); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if got := connector.dials.Load(); got != 1 {
		t.Fatalf("Connection used within max idle must not reconnect, got %d dials", got)
	}

	advance(1500 * time.Millisecond)
	if _, err := conn.Request([]byte("c")); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if got := connector.dials.Load(); got != 2 {
		t.Errorf("Idle connection must reconnect before the send, got %d dials", got)
	}
}

// TestTaskConnSendRetry tests that a failed send reconnects and retries a bounded number of times
func TestTaskConnSendRetry(t *testing.T) {
	g := newTestGateway(t)

	t.Run("Recovers", func(t *testing.T) {
		conn, connector := newTestTaskConn(t, g, testShardConfig(1, g.addr()))

		// break the socket under the connection
		socket, _ := conn.conn.current()
		_ = socket.Close()

		resp, err := conn.Request([]byte("retry"))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if string(resp) != "retry" {
			t.Errorf("Request() = %q", resp)
		}
		if got := connector.dials.Load(); got != 2 {
			t.Errorf("Expected a reconnect, got %d dials", got)
		}
	})

	t.Run("GivesUp", func(t *testing.T) {
		config := testShardConfig(1, g.addr())
		config.Transport.RetryCount = 3
		conn, connector := newTestTaskConn(t, g, config)

		socket, _ := conn.conn.current()
		_ = socket.Close()
		connector.fail.Store(true)

		err := conn.Send([]byte("lost"))
		if !errors.Is(err, common.ErrSend) {
			t.Fatalf("Expected ErrSend, got %v", err)
		}
		if !errors.Is(err, common.ErrConnect) {
			t.Errorf("Expected the last reconnect error to be wrapped, got %v", err)
		}
		// one initial dial, then one reconnect per retry
		if got := connector.dials.Load(); got != 3 {
			t.Errorf("Expected 3 dials, got %d", got)
		}
		if conn.IsConnected() {
			t.Error("Connection must be disconnected after giving up")
		}
	})
}

// TestTaskConnReplyTimeout tests that a missing reply is a soft error and drops the socket
func TestTaskConnReplyTimeout(t *testing.T) {
	g := newTestGateway(t)

	config := testShardConfig(1, g.addr())
	config.ReceiveTimeoutMillisecond = 50
	conn, connector := newTestTaskConn(t, g, config)

	_, err := conn.Request(g.silent)
	if !errors.Is(err, common.ErrReceiveTimeout) {
		t.Fatalf("Expected ErrReceiveTimeout, got %v", err)
	}
	if conn.IsConnected() {
		t.Error("A socket with an outstanding reply must be dropped")
	}

	// the next request uses a fresh socket
	resp, err := conn.Request([]byte("next"))
	if err != nil || string(resp) != "next" {
		t.Errorf("Request after timeout = %q, %v", resp, err)
	}
	if got := connector.dials.Load(); got != 2 {
		t.Errorf("Expected 2 dials, got %d", got)
	}
}

// TestTaskConnHeartbeat tests heartbeats run on the scheduler and consume their pong
func TestTaskConnHeartbeat(t *testing.T) {
	g := newTestGateway(t)

	sched := scheduler.NewManualScheduler()
	conn := newTaskConn(&testConnector{}, testShardConfig(1, g.addr()), sched)
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	conn.StartHeartbeat()
	conn.StartHeartbeat() // idempotent
	if sched.Pending() != 1 {
		t.Fatalf("Expected 1 scheduled heartbeat, got %d", sched.Pending())
	}

	sched.Advance(3 * time.Second)
	if got := g.pings.Load(); got != 3 {
		t.Errorf("Expected 3 pings, got %d", got)
	}

	// the pongs were consumed, the next reply is the echo
	resp, err := conn.Request([]byte("after heartbeat"))
	if err != nil || string(resp) != "after heartbeat" {
		t.Errorf("Request after heartbeats = %q, %v", resp, err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sched.Pending() != 0 {
		t.Errorf("Close must cancel the heartbeat, %d tasks pending", sched.Pending())
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}
