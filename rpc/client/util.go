package client

import (
	"fmt"
	"github.com/ValentinKolb/netbus/lib/shard"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var (
	Logger = logger.GetLogger("netbus")
)

// encodeRequest serializes msg and puts the opcode in front of it.
// A nil msg produces a body that only carries the opcode.
func encodeRequest(cmd common.Cmd, msg common.Message, serializer serializer.IRPCSerializer) ([]byte, error) {
	if msg == nil {
		return common.PackBody(cmd, nil), nil
	}
	payload, err := serializer.Serialize(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", cmd, err)
	}
	return common.PackBody(cmd, payload), nil
}

// invokeSend writes a request that the shard does not answer
func invokeSend(conn transport.ITaskConn, cmd common.Cmd, body []byte) error {
	start := time.Now()
	err := conn.Send(body)
	common.ObserveRequest(cmd, conn.ShardID(), start, err)
	if err != nil {
		return fmt.Errorf("call %s on shard %d failed: %w", cmd, conn.ShardID(), err)
	}
	return nil
}

// invokeRequest is a helper function used by all read operations of the bus.
// It sends body, waits for the reply and decodes it into resp.
// The reply must carry the opcode of the request.
func invokeRequest(conn transport.ITaskConn, cmd common.Cmd, body []byte, resp common.Message, serializer serializer.IRPCSerializer) error {
	start := time.Now()
	err := func() error {
		reply, err := conn.Request(body)
		if err != nil {
			return err
		}

		replyCmd, payload, err := common.UnpackBody(reply)
		if err != nil {
			return err
		}
		if replyCmd != cmd {
			return fmt.Errorf("%w: unexpected reply %s", common.ErrProtocol, replyCmd)
		}

		if err := serializer.Deserialize(payload, resp); err != nil {
			return fmt.Errorf("%w: %v", common.ErrProtocol, err)
		}
		return nil
	}()

	common.ObserveRequest(cmd, conn.ShardID(), start, err)
	if err != nil {
		return fmt.Errorf("call %s on shard %d failed: %w", cmd, conn.ShardID(), err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Targets
// --------------------------------------------------------------------------

// target is a shard connection together with the positions of the ids it owns
type target struct {
	conn  transport.ITaskConn
	group shard.Group
}

// targets resolves the connections that own ids.
// With one configured shard or one id no partitioning is done. Ids that cannot
// be routed and shards without a connection are skipped.
func targets(pool transport.ITaskConnPool, router shard.IRouter, cmd common.Cmd, ids []string) []target {
	if len(ids) == 0 {
		return nil
	}

	if pool.Count() == 1 {
		if conns := pool.All(); len(conns) == 1 {
			all := shard.Group{ShardID: conns[0].ShardID(), Indexes: make([]int, len(ids))}
			for i := range ids {
				all.Indexes[i] = i
			}
			return []target{{conn: conns[0], group: all}}
		}
	}

	if len(ids) == 1 {
		shardId, ok := router.Resolve(ids[0])
		if !ok {
			Logger.Debugf("%s: dropped unroutable id %q", cmd, ids[0])
			return nil
		}
		conn, ok := pool.Get(shardId)
		if !ok {
			Logger.Debugf("%s: shard %d is unavailable", cmd, shardId)
			return nil
		}
		return []target{{conn: conn, group: shard.Group{ShardID: shardId, Indexes: []int{0}}}}
	}

	groups, unroutable := shard.Partition(router, ids)
	if len(unroutable) > 0 {
		Logger.Debugf("%s: dropped %d unroutable ids", cmd, len(unroutable))
	}

	result := make([]target, 0, len(groups))
	for _, g := range groups {
		conn, ok := pool.Get(g.ShardID)
		if !ok {
			Logger.Debugf("%s: shard %d is unavailable, dropped %d ids", cmd, g.ShardID, len(g.Indexes))
			continue
		}
		result = append(result, target{conn: conn, group: g})
	}
	return result
}

// requestAll sends the same request to every shard and hands each decoded reply to collect.
// The first failing shard aborts the call.
func requestAll[R any, PR interface {
	*R
	common.Message
}](b *NetBus, cmd common.Cmd, msg common.Message, collect func(shardId uint64, resp PR)) error {
	body, err := encodeRequest(cmd, msg, b.serializer)
	if err != nil {
		return err
	}

	for _, conn := range b.pool.All() {
		resp := PR(new(R))
		if err := invokeRequest(conn, cmd, body, resp, b.serializer); err != nil {
			return err
		}
		collect(conn.ShardID(), resp)
	}
	return nil
}

// requestTargets sends one request per shard owning some of ids, build creates the
// request from the positions of the ids of that shard
func requestTargets[R any, PR interface {
	*R
	common.Message
}](b *NetBus, cmd common.Cmd, ids []string, build func(g shard.Group) common.Message, collect func(shardId uint64, resp PR)) error {
	for _, t := range targets(b.pool, b.router, cmd, ids) {
		body, err := encodeRequest(cmd, build(t.group), b.serializer)
		if err != nil {
			return err
		}
		resp := PR(new(R))
		if err := invokeRequest(t.conn, cmd, body, resp, b.serializer); err != nil {
			return err
		}
		collect(t.conn.ShardID(), resp)
	}
	return nil
}
