package base

import (
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"sync"
)

// PushManager brings up and tears down the push connections of all shards together
type PushManager struct {
	pool    *Pool[transport.IPushConn]
	mu      sync.Mutex
	started bool
}

// NewPushManager creates a manager for the push connections in pool
func NewPushManager(pool *Pool[transport.IPushConn]) *PushManager {
	return &PushManager{pool: pool}
}

// Pool returns the managed pool
func (m *PushManager) Pool() *Pool[transport.IPushConn] {
	return m.pool
}

// Start connects and registers every push connection, then starts their heartbeats.
// If one step fails for a shard, everything done so far is rolled back and the
// connections are closed; a new pool is needed for another attempt.
func (m *PushManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	conns := m.pool.All()

	for i, conn := range conns {
		if err := conn.Connect(); err != nil {
			for _, done := range conns[:i] {
				_ = done.Close()
			}
			return fmt.Errorf("failed to connect push connection to shard %d: %w", conn.ShardID(), err)
		}
	}

	for i, conn := range conns {
		if err := conn.Register(); err != nil {
			for _, done := range conns[:i] {
				if uerr := done.Unregister(); uerr != nil {
					Logger.Warningf("Rollback: %v", uerr)
				}
			}
			for _, c := range conns {
				_ = c.Close()
			}
			return fmt.Errorf("failed to register push connection on shard %d: %w", conn.ShardID(), err)
		}
	}

	for _, conn := range conns {
		conn.StartHeartbeat()
	}

	m.started = true
	Logger.Infof("Started %d push connections", len(conns))
	return nil
}

// Close unregisters every push connection, so the shards stop forwarding events,
// and closes them afterwards. Failed unregistrations are logged, not returned.
func (m *PushManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conn := range m.pool.All() {
		if err := conn.Unregister(); err != nil {
			Logger.Warningf("Unregister failed: %v", err)
		}
	}

	m.started = false
	return m.pool.Close()
}
