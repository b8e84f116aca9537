// Package client implements the NetBus, the command façade for a sharded WebSocket gateway.
// It turns application calls (send to a client, publish to a topic, list the online clients, ...)
// into gateway commands and sends them over the task connections of the shards.
//
// The package focuses on:
//   - Routing commands addressed to uniqIds to the shard encoded in the id
//   - Fanning out commands addressed to customer ids or to everyone
//   - Merging the replies of all shards for reads
//
// Dispatch:
//
//   - Single target (SingleCast, TopicSubscribe, ConnInfoUpdate, ...): the shard is resolved
//     from the uniqId. If the id cannot be routed or the shard has no connection, the call
//     is a no-op.
//
//   - Target lists (Multicast, ForceOffline, SingleCastBulk, CheckOnline, ConnInfo, ...): the ids
//     are partitioned by shard and one request is sent per shard, the ids of a shard keep their
//     relative order. With one configured shard or a single id the list is sent as is.
//
//   - Customer ids and global writes (Broadcast, TopicPublish, MulticastByCustomerId, ...):
//     the same request is sent to every shard.
//
//   - Global reads: every shard is asked and the replies are merged. Disjoint results
//     (uniqIds) are concatenated or summed, results that may overlap between shards
//     (topics, customer ids) are de-duplicated or reported per shard.
//
// Writes are not answered by the gateway, reads expect one reply with the opcode of the request.
// The first failing shard aborts a call, a partially merged result is never returned.
//
// Usage Example:
//
//	pool, _ := base.NewTaskPool(tcp.NewTCPConnector(), shards, scheduler.NewTickerScheduler())
//	bus := client.NewNetBus(pool, shard.NewHexPrefixRouter(0), serializer.NewProtoSerializer())
//
//	_ = bus.SingleCast("01a3f", []byte("hello"))
//	_ = bus.TopicPublish([]string{"news"}, []byte("extra"))
//	members, _ := bus.TopicUniqIdList([]string{"news"})
//
// Thread Safety:
//
//	A NetBus can be used from multiple goroutines. Requests to the same shard are
//	serialized by its task connection.
package client
