package base

import (
	"errors"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/rpc/common"
	"sync/atomic"
	"testing"
)

// fakeConn is a connection that only records Close
type fakeConn struct {
	id       uint64
	closeErr error
	closed   atomic.Int32
}

func (c *fakeConn) ShardID() uint64 { return c.id }
func (c *fakeConn) Endpoint() string { return "fake" }
func (c *fakeConn) IsConnected() bool { return c.closed.Load() == 0 }
func (c *fakeConn) Connect() error { return nil }
func (c *fakeConn) Close() error {
	c.closed.Add(1)
	return c.closeErr
}

// TestPoolAll tests that All is ordered by shard id
func TestPoolAll(t *testing.T) {
	pool := NewPool[*fakeConn]()
	for _, id := range []uint64{5, 1, 3} {
		pool.Add(&fakeConn{id: id})
	}

	all := pool.All()
	if len(all) != 3 || pool.Count() != 3 {
		t.Fatalf("Expected 3 connections, got %d (count %d)", len(all), pool.Count())
	}
	for i, expected := range []uint64{1, 3, 5} {
		if all[i].ShardID() != expected {
			t.Errorf("All()[%d] has shard %d, expected %d", i, all[i].ShardID(), expected)
		}
	}

	if _, ok := pool.Get(2); ok {
		t.Error("Get on unknown shard must report absent")
	}
	if conn, ok := pool.Get(3); !ok || conn.ShardID() != 3 {
		t.Errorf("Get(3) = %v, %t", conn, ok)
	}
}

// TestPoolReplace tests that replacing a connection closes the previous one
func TestPoolReplace(t *testing.T) {
	pool := NewPool[*fakeConn]()
	first := &fakeConn{id: 1}
	second := &fakeConn{id: 1}

	pool.Add(first)
	pool.Add(first)
	if first.closed.Load() != 0 {
		t.Fatal("Adding the same connection again must not close it")
	}

	pool.Add(second)
	if first.closed.Load() != 1 {
		t.Error("Replaced connection must be closed")
	}
	if conn, _ := pool.Get(1); conn != second {
		t.Error("Pool must hold the new connection")
	}
}

// TestPoolClose tests that one failing close does not prevent closing the others
func TestPoolClose(t *testing.T) {
	pool := NewPool[*fakeConn]()
	conns := []*fakeConn{
		{id: 1},
		{id: 2, closeErr: errors.New("broken")},
		{id: 3},
	}
	for _, c := range conns {
		pool.Add(c)
	}

	err := pool.Close()
	if err == nil {
		t.Fatal("Expected the close error to be returned")
	}
	for _, c := range conns {
		if c.closed.Load() != 1 {
			t.Errorf("Connection of shard %d closed %d times", c.id, c.closed.Load())
		}
	}
	if pool.Count() != 0 {
		t.Errorf("Pool must be empty after Close, has %d", pool.Count())
	}
}

// TestNewTaskPool tests connecting a task pool and its failure modes
func TestNewTaskPool(t *testing.T) {
	g1 := newTestGateway(t)
	g2 := newTestGateway(t)

	t.Run("Success", func(t *testing.T) {
		sched := scheduler.NewManualScheduler()
		pool, err := NewTaskPool(&testConnector{}, []common.ShardConfig{
			testShardConfig(2, g2.addr()),
			testShardConfig(1, g1.addr()),
		}, sched)
		if err != nil {
			t.Fatalf("NewTaskPool failed: %v", err)
		}
		defer pool.Close()

		if pool.Count() != 2 || sched.Pending() != 2 {
			t.Fatalf("Expected 2 connections with heartbeats, got %d / %d", pool.Count(), sched.Pending())
		}
		for _, conn := range pool.All() {
			if !conn.IsConnected() {
				t.Errorf("Connection to shard %d is not connected", conn.ShardID())
			}
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		sched := scheduler.NewManualScheduler()
		connector := &testConnector{failEndpoint: g2.addr()}
		_, err := NewTaskPool(connector, []common.ShardConfig{
			testShardConfig(1, g1.addr()),
			testShardConfig(2, g2.addr()),
		}, sched)
		if !errors.Is(err, common.ErrConnect) {
			t.Fatalf("Expected ErrConnect, got %v", err)
		}
		if sched.Pending() != 0 {
			t.Errorf("Heartbeats of the rolled back pool must be cancelled, %d pending", sched.Pending())
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := NewTaskPool(&testConnector{}, []common.ShardConfig{
			testShardConfig(1, g1.addr()),
			testShardConfig(1, g2.addr()),
		}, scheduler.NewManualScheduler())
		if !errors.Is(err, common.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})
}
