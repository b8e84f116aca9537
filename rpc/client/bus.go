package client

import (
	"fmt"
	"github.com/ValentinKolb/netbus/lib/shard"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"sort"
)

// NetBus sends commands to the gateway shards.
//
// Commands addressed to uniqIds go to the shard encoded in the id, commands addressed
// to customer ids or to everyone go to every shard, and reads over all shards merge
// the replies. A shard without a connection is skipped.
// The shards are called one after another; concurrent calls are serialized per shard
// by the task connections.
type NetBus struct {
	pool       transport.ITaskConnPool
	router     shard.IRouter
	serializer serializer.IRPCSerializer
}

// NewNetBus creates a bus on top of the task connections in pool
func NewNetBus(pool transport.ITaskConnPool, router shard.IRouter, serializer serializer.IRPCSerializer) *NetBus {
	return &NetBus{
		pool:       pool,
		router:     router,
		serializer: serializer,
	}
}

// --------------------------------------------------------------------------
// Dispatch helpers
// --------------------------------------------------------------------------

// sendTo sends msg to the shard owning uniqId. Unknown shards are a no-op.
func (b *NetBus) sendTo(uniqId string, cmd common.Cmd, msg common.Message) error {
	shardId, ok := b.router.Resolve(uniqId)
	if !ok {
		Logger.Debugf("%s: dropped unroutable id %q", cmd, uniqId)
		return nil
	}
	conn, ok := b.pool.Get(shardId)
	if !ok {
		Logger.Debugf("%s: shard %d is unavailable", cmd, shardId)
		return nil
	}

	body, err := encodeRequest(cmd, msg, b.serializer)
	if err != nil {
		return err
	}
	return invokeSend(conn, cmd, body)
}

// sendAll sends msg to every shard
func (b *NetBus) sendAll(cmd common.Cmd, msg common.Message) error {
	body, err := encodeRequest(cmd, msg, b.serializer)
	if err != nil {
		return err
	}
	for _, conn := range b.pool.All() {
		if err := invokeSend(conn, cmd, body); err != nil {
			return err
		}
	}
	return nil
}

// sendTargets sends one message per shard owning some of ids
func (b *NetBus) sendTargets(cmd common.Cmd, ids []string, build func(g shard.Group) common.Message) error {
	for _, t := range targets(b.pool, b.router, cmd, ids) {
		body, err := encodeRequest(cmd, build(t.group), b.serializer)
		if err != nil {
			return err
		}
		if err := invokeSend(t.conn, cmd, body); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Connection info
// --------------------------------------------------------------------------

// ConnInfoUpdate updates the session, topics or customer id stored for a client
func (b *NetBus) ConnInfoUpdate(msg *common.ConnInfoUpdate) error {
	return b.sendTo(msg.UniqId, common.CmdConnInfoUpdate, msg)
}

// ConnInfoDelete deletes the session, topics or customer id stored for a client
func (b *NetBus) ConnInfoDelete(msg *common.ConnInfoDelete) error {
	return b.sendTo(msg.UniqId, common.CmdConnInfoDelete, msg)
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Broadcast sends data to every client of every shard
func (b *NetBus) Broadcast(data []byte) error {
	return b.sendAll(common.CmdBroadcast, &common.Broadcast{Data: data})
}

// Multicast sends data to the clients in uniqIds
func (b *NetBus) Multicast(uniqIds []string, data []byte) error {
	return b.sendTargets(common.CmdMulticast, uniqIds, func(g shard.Group) common.Message {
		return &common.Multicast{UniqIds: shard.Pick(uniqIds, g), Data: data}
	})
}

// MulticastByCustomerId sends data to every connection of the given customers
func (b *NetBus) MulticastByCustomerId(customerIds []string, data []byte) error {
	return b.sendAll(common.CmdMulticastByCustomerId, &common.MulticastByCustomerId{CustomerIds: customerIds, Data: data})
}

// SingleCast sends data to one client
func (b *NetBus) SingleCast(uniqId string, data []byte) error {
	return b.sendTo(uniqId, common.CmdSingleCast, &common.SingleCast{UniqId: uniqId, Data: data})
}

// SingleCastByCustomerId sends data to every connection of one customer
func (b *NetBus) SingleCastByCustomerId(customerId string, data []byte) error {
	return b.sendAll(common.CmdSingleCastByCustomerId, &common.SingleCastByCustomerId{CustomerId: customerId, Data: data})
}

// SingleCastBulk sends data[i] to uniqIds[i]. With a single uniqId every element of
// data is sent to that client. Other length mismatches are rejected.
func (b *NetBus) SingleCastBulk(uniqIds []string, data [][]byte) error {
	if len(uniqIds) == 1 {
		return b.sendTargets(common.CmdSingleCastBulk, uniqIds, func(shard.Group) common.Message {
			return &common.SingleCastBulk{UniqIds: uniqIds, Data: data}
		})
	}
	if len(uniqIds) != len(data) {
		return fmt.Errorf("%w: %d uniqIds but %d payloads", common.ErrInvalidArgument, len(uniqIds), len(data))
	}
	return b.sendTargets(common.CmdSingleCastBulk, uniqIds, func(g shard.Group) common.Message {
		return &common.SingleCastBulk{UniqIds: shard.Pick(uniqIds, g), Data: shard.Pick(data, g)}
	})
}

// SingleCastBulkMap sends every payload to the client it is keyed by.
// The clients of a shard are addressed in ascending order of their uniqIds.
func (b *NetBus) SingleCastBulkMap(items map[string][]byte) error {
	uniqIds := make([]string, 0, len(items))
	for uniqId := range items {
		uniqIds = append(uniqIds, uniqId)
	}
	sort.Strings(uniqIds)

	data := make([][]byte, len(uniqIds))
	for i, uniqId := range uniqIds {
		data[i] = items[uniqId]
	}
	return b.SingleCastBulk(uniqIds, data)
}

// SingleCastBulkByCustomerId sends data[i] to every connection of customerIds[i].
// With a single customer id every element of data is sent to that customer.
func (b *NetBus) SingleCastBulkByCustomerId(customerIds []string, data [][]byte) error {
	if len(customerIds) != 1 && len(customerIds) != len(data) {
		return fmt.Errorf("%w: %d customer ids but %d payloads", common.ErrInvalidArgument, len(customerIds), len(data))
	}
	return b.sendAll(common.CmdSingleCastBulkByCustomerId, &common.SingleCastBulkByCustomerId{CustomerIds: customerIds, Data: data})
}

// --------------------------------------------------------------------------
// Topics
// --------------------------------------------------------------------------

// TopicSubscribe subscribes a client to topics, data is sent to the client afterwards if not empty
func (b *NetBus) TopicSubscribe(uniqId string, topics []string, data []byte) error {
	return b.sendTo(uniqId, common.CmdTopicSubscribe, &common.TopicSubscribe{UniqId: uniqId, Topics: topics, Data: data})
}

// TopicUnsubscribe removes topics from a client, data is sent to the client afterwards if not empty
func (b *NetBus) TopicUnsubscribe(uniqId string, topics []string, data []byte) error {
	return b.sendTo(uniqId, common.CmdTopicUnsubscribe, &common.TopicUnsubscribe{UniqId: uniqId, Topics: topics, Data: data})
}

// TopicDelete deletes topics on every shard, data is sent to their former members if not empty
func (b *NetBus) TopicDelete(topics []string, data []byte) error {
	return b.sendAll(common.CmdTopicDelete, &common.TopicDelete{Topics: topics, Data: data})
}

// TopicPublish sends data to the members of topics
func (b *NetBus) TopicPublish(topics []string, data []byte) error {
	return b.sendAll(common.CmdTopicPublish, &common.TopicPublish{Topics: topics, Data: data})
}

// TopicPublishBulk sends data[i] to the members of topics[i].
// With a single topic every element of data is published to it.
func (b *NetBus) TopicPublishBulk(topics []string, data [][]byte) error {
	if len(topics) != 1 && len(topics) != len(data) {
		return fmt.Errorf("%w: %d topics but %d payloads", common.ErrInvalidArgument, len(topics), len(data))
	}
	return b.sendAll(common.CmdTopicPublishBulk, &common.TopicPublishBulk{Topics: topics, Data: data})
}

// --------------------------------------------------------------------------
// Disconnecting
// --------------------------------------------------------------------------

// ForceOffline disconnects clients, data is sent to them before if not empty
func (b *NetBus) ForceOffline(uniqIds []string, data []byte) error {
	return b.sendTargets(common.CmdForceOffline, uniqIds, func(g shard.Group) common.Message {
		return &common.ForceOffline{UniqIds: shard.Pick(uniqIds, g), Data: data}
	})
}

// ForceOfflineByCustomerId disconnects every connection of the given customers
func (b *NetBus) ForceOfflineByCustomerId(customerIds []string, data []byte) error {
	return b.sendAll(common.CmdForceOfflineByCustomerId, &common.ForceOfflineByCustomerId{CustomerIds: customerIds, Data: data})
}

// ForceOfflineGuest disconnects the clients in uniqIds that have neither a session
// nor a customer id. The shard checks this after delay seconds.
func (b *NetBus) ForceOfflineGuest(uniqIds []string, data []byte, delay int32) error {
	return b.sendTargets(common.CmdForceOfflineGuest, uniqIds, func(g shard.Group) common.Message {
		return &common.ForceOfflineGuest{UniqIds: shard.Pick(uniqIds, g), Data: data, Delay: delay}
	})
}

// --------------------------------------------------------------------------
// Reads by uniqId
// --------------------------------------------------------------------------

// CheckOnline returns the uniqIds that are currently connected
func (b *NetBus) CheckOnline(uniqIds []string) ([]string, error) {
	online := []string{}
	err := requestTargets(b, common.CmdCheckOnline, uniqIds,
		func(g shard.Group) common.Message {
			return &common.UniqIds{UniqIds: shard.Pick(uniqIds, g)}
		},
		func(_ uint64, resp *common.UniqIds) {
			online = append(online, resp.UniqIds...)
		})
	if err != nil {
		return nil, err
	}
	return online, nil
}

// ConnInfo returns the connection info of the clients in req.UniqIds
func (b *NetBus) ConnInfo(req common.ConnInfoReq) (map[string]common.ConnInfo, error) {
	infos := make(map[string]common.ConnInfo)
	err := requestTargets(b, common.CmdConnInfo, req.UniqIds,
		func(g shard.Group) common.Message {
			part := req
			part.UniqIds = shard.Pick(req.UniqIds, g)
			return &part
		},
		func(_ uint64, resp *common.ConnInfoResp) {
			for uniqId, info := range resp.Items {
				infos[uniqId] = info
			}
		})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// --------------------------------------------------------------------------
// Reads over all shards
// --------------------------------------------------------------------------

// UniqIdList returns the uniqIds of all connected clients
func (b *NetBus) UniqIdList() ([]string, error) {
	uniqIds := []string{}
	err := requestAll(b, common.CmdUniqIdList, nil, func(_ uint64, resp *common.UniqIds) {
		uniqIds = append(uniqIds, resp.UniqIds...)
	})
	if err != nil {
		return nil, err
	}
	return uniqIds, nil
}

// UniqIdCount returns the number of connected clients
func (b *NetBus) UniqIdCount() (int32, error) {
	var total int32
	err := requestAll(b, common.CmdUniqIdCount, nil, func(_ uint64, resp *common.Count) {
		total += resp.Count
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// TopicList returns the names of all topics
func (b *NetBus) TopicList() ([]string, error) {
	topics := newUnionSet()
	err := requestAll(b, common.CmdTopicList, nil, func(_ uint64, resp *common.Strings) {
		topics.add(resp.Items...)
	})
	if err != nil {
		return nil, err
	}
	return topics.items, nil
}

// TopicCount returns the number of topics per shard.
// The counts are not summed because a topic can have members on several shards.
func (b *NetBus) TopicCount() ([]ShardCount, error) {
	return b.countPerShard(common.CmdTopicCount)
}

// TopicUniqIdList returns the uniqIds subscribed to each of topics
func (b *NetBus) TopicUniqIdList(topics []string) (map[string][]string, error) {
	return b.topicMembers(common.CmdTopicUniqIdList, topics, false)
}

// TopicUniqIdCount returns the number of clients subscribed to each of topics,
// or to every topic if countAll is set
func (b *NetBus) TopicUniqIdCount(topics []string, countAll bool) (map[string]int32, error) {
	counts := make(map[string]int32)
	req := &common.TopicCountReq{Topics: topics, CountAll: countAll}
	err := requestAll(b, common.CmdTopicUniqIdCount, req, func(_ uint64, resp *common.TopicCountResp) {
		mergeCounts(counts, resp.Items)
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// TopicCustomerIdList returns the customer ids subscribed to each of topics.
// A customer connected to several shards is listed once.
func (b *NetBus) TopicCustomerIdList(topics []string) (map[string][]string, error) {
	return b.topicMembers(common.CmdTopicCustomerIdList, topics, true)
}

// TopicCustomerIdCount returns the number of customers subscribed to each of topics per shard
func (b *NetBus) TopicCustomerIdCount(topics []string, countAll bool) ([]ShardTopicCount, error) {
	result := []ShardTopicCount{}
	req := &common.TopicCountReq{Topics: topics, CountAll: countAll}
	err := requestAll(b, common.CmdTopicCustomerIdCount, req, func(shardId uint64, resp *common.TopicCountResp) {
		result = append(result, ShardTopicCount{ShardID: shardId, Items: resp.Items})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConnInfoByCustomerId returns all connections of the customers in req.CustomerIds
func (b *NetBus) ConnInfoByCustomerId(req common.ConnInfoByCustomerIdReq) (map[string][]common.ConnInfo, error) {
	infos := make(map[string][]common.ConnInfo)
	err := requestAll(b, common.CmdConnInfoByCustomerId, &req, func(_ uint64, resp *common.ConnInfoByCustomerIdResp) {
		for customerId, items := range resp.Items {
			infos[customerId] = append(infos[customerId], items...)
		}
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// CustomerIdList returns the ids of all connected customers
func (b *NetBus) CustomerIdList() ([]string, error) {
	customerIds := newUnionSet()
	err := requestAll(b, common.CmdCustomerIdList, nil, func(_ uint64, resp *common.Strings) {
		customerIds.add(resp.Items...)
	})
	if err != nil {
		return nil, err
	}
	return customerIds.items, nil
}

// CustomerIdCount returns the number of connected customers per shard
func (b *NetBus) CustomerIdCount() ([]ShardCount, error) {
	return b.countPerShard(common.CmdCustomerIdCount)
}

// Metrics returns the metrics of every shard
func (b *NetBus) Metrics() ([]ShardMetrics, error) {
	result := []ShardMetrics{}
	err := requestAll(b, common.CmdMetrics, nil, func(shardId uint64, resp *common.MetricsResp) {
		result = append(result, ShardMetrics{ShardID: shardId, Items: resp.Items})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Limit updates the concurrency limits of every shard and returns the current limits.
// A zero req only reads them.
func (b *NetBus) Limit(req common.Limit) ([]ShardLimit, error) {
	result := []ShardLimit{}
	err := requestAll(b, common.CmdLimit, &req, func(shardId uint64, resp *common.Limit) {
		result = append(result, ShardLimit{ShardID: shardId, Limit: *resp})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LimitShard is Limit for a single shard. If the shard has no connection the
// result is empty and the error wraps common.ErrShardUnavailable.
func (b *NetBus) LimitShard(shardId uint64, req common.Limit) ([]ShardLimit, error) {
	conn, ok := b.pool.Get(shardId)
	if !ok {
		return []ShardLimit{}, fmt.Errorf("%w: shard %d", common.ErrShardUnavailable, shardId)
	}

	body, err := encodeRequest(common.CmdLimit, &req, b.serializer)
	if err != nil {
		return nil, err
	}
	var resp common.Limit
	if err := invokeRequest(conn, common.CmdLimit, body, &resp, b.serializer); err != nil {
		return nil, err
	}
	return []ShardLimit{{ShardID: shardId, Limit: resp}}, nil
}

// --------------------------------------------------------------------------
// Shared reads
// --------------------------------------------------------------------------

func (b *NetBus) countPerShard(cmd common.Cmd) ([]ShardCount, error) {
	result := []ShardCount{}
	err := requestAll(b, cmd, nil, func(shardId uint64, resp *common.Count) {
		result = append(result, ShardCount{ShardID: shardId, Count: resp.Count})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *NetBus) topicMembers(cmd common.Cmd, topics []string, dedup bool) (map[string][]string, error) {
	members := newMemberMerge(dedup)
	err := requestAll(b, cmd, &common.TopicsReq{Topics: topics}, func(_ uint64, resp *common.TopicMembersResp) {
		members.add(resp.Items)
	})
	if err != nil {
		return nil, err
	}
	return members.items, nil
}
