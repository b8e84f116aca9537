package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
)

// Pool holds one connection per shard. It is safe for concurrent use.
type Pool[T transport.IShardConn] struct {
	conns *xsync.MapOf[uint64, T]
}

// NewPool creates an empty pool
func NewPool[T transport.IShardConn]() *Pool[T] {
	return &Pool[T]{conns: xsync.NewMapOf[uint64, T]()}
}

// Add stores conn under its shard id. A different connection previously stored for the shard is closed.
func (p *Pool[T]) Add(conn T) {
	old, loaded := p.conns.LoadAndStore(conn.ShardID(), conn)
	if loaded && any(old) != any(conn) {
		if err := old.Close(); err != nil {
			Logger.Warningf("Failed to close replaced connection to shard %d: %v", old.ShardID(), err)
		}
	}
}

// Get returns the connection of a shard. ok is false if the pool holds no connection for it.
func (p *Pool[T]) Get(shardId uint64) (T, bool) {
	return p.conns.Load(shardId)
}

// All returns every connection ordered by shard id
func (p *Pool[T]) All() []T {
	all := make([]T, 0, p.conns.Size())
	p.conns.Range(func(_ uint64, conn T) bool {
		all = append(all, conn)
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		return all[i].ShardID() < all[j].ShardID()
	})
	return all
}

// Count returns the number of connections
func (p *Pool[T]) Count() int {
	return p.conns.Size()
}

// Close closes every connection and empties the pool.
// A failing close does not stop the others, all errors are returned joined.
func (p *Pool[T]) Close() error {
	var errs []error
	for _, conn := range p.All() {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", conn.ShardID(), err))
		}
		p.conns.Delete(conn.ShardID())
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Pool Factory Methods
// --------------------------------------------------------------------------

// NewTaskPool connects a task connection to every shard and starts their heartbeats.
// If a shard cannot be reached, the connections created so far are closed and the error is returned.
func NewTaskPool(connector IClientConnector, shards []common.ShardConfig, s scheduler.IScheduler) (*Pool[transport.ITaskConn], error) {
	pool := NewPool[transport.ITaskConn]()

	for _, config := range shards {
		if _, exists := pool.Get(config.ShardID); exists {
			_ = pool.Close()
			return nil, fmt.Errorf("%w: shard %d configured twice", common.ErrInvalidArgument, config.ShardID)
		}

		conn := NewTaskConn(connector, config, s)
		if err := conn.Connect(); err != nil {
			_ = pool.Close()
			return nil, err
		}
		pool.Add(conn)
		conn.StartHeartbeat()
	}

	Logger.Infof("Connected %d task connections (%s)", pool.Count(), connector.GetName())
	return pool, nil
}

// NewPushPool creates (but does not connect) a push connection for every shard
func NewPushPool(
	connector IClientConnector,
	shards []common.ShardConfig,
	push common.PushConfig,
	serializer serializer.IRPCSerializer,
	handler transport.IEventHandler,
	tasks transport.ITaskConnPool,
	s scheduler.IScheduler,
) *Pool[transport.IPushConn] {
	pool := NewPool[transport.IPushConn]()
	for _, config := range shards {
		pool.Add(NewPushConn(connector, config, push, serializer, handler, tasks, s))
	}
	return pool
}
