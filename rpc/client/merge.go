package client

import (
	"github.com/ValentinKolb/netbus/rpc/common"
)

// --------------------------------------------------------------------------
// Per shard results
// --------------------------------------------------------------------------

// ShardCount is a count reported by one shard. Counts of different shards
// are not summed if the counted entities may exist on several shards.
type ShardCount struct {
	ShardID uint64 `json:"shardId"`
	Count   int32  `json:"count"`
}

// ShardTopicCount holds the per topic counts reported by one shard
type ShardTopicCount struct {
	ShardID uint64           `json:"shardId"`
	Items   map[string]int32 `json:"items"`
}

// ShardMetrics holds the metrics reported by one shard
type ShardMetrics struct {
	ShardID uint64               `json:"shardId"`
	Items   []common.MetricsItem `json:"items"`
}

// ShardLimit holds the concurrency limits of one shard
type ShardLimit struct {
	ShardID uint64       `json:"shardId"`
	Limit   common.Limit `json:"limit"`
}

// --------------------------------------------------------------------------
// Merging
// --------------------------------------------------------------------------

// unionSet collects strings once, in the order they were first seen
type unionSet struct {
	seen  map[string]struct{}
	items []string
}

func newUnionSet() *unionSet {
	return &unionSet{seen: make(map[string]struct{}), items: []string{}}
}

func (u *unionSet) add(items ...string) {
	for _, item := range items {
		if _, ok := u.seen[item]; ok {
			continue
		}
		u.seen[item] = struct{}{}
		u.items = append(u.items, item)
	}
}

// mergeCounts adds the counts of src to dst per key
func mergeCounts(dst, src map[string]int32) {
	for key, count := range src {
		dst[key] += count
	}
}

// memberMerge merges topic memberships of several shards per topic
type memberMerge struct {
	items map[string][]string
	// seen is nil if members are not de-duplicated
	seen map[string]map[string]struct{}
}

func newMemberMerge(dedup bool) *memberMerge {
	m := &memberMerge{items: make(map[string][]string)}
	if dedup {
		m.seen = make(map[string]map[string]struct{})
	}
	return m
}

func (m *memberMerge) add(src map[string][]string) {
	for key, members := range src {
		if _, ok := m.items[key]; !ok {
			m.items[key] = make([]string, 0, len(members))
		}
		if m.seen == nil {
			m.items[key] = append(m.items[key], members...)
			continue
		}
		seen, ok := m.seen[key]
		if !ok {
			seen = make(map[string]struct{}, len(members))
			m.seen[key] = seen
		}
		for _, member := range members {
			if _, dup := seen[member]; dup {
				continue
			}
			seen[member] = struct{}{}
			m.items[key] = append(m.items[key], member)
		}
	}
}
