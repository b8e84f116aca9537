package shard

import (
	"fmt"
	"strconv"
)

// DefaultPrefixWidth is the number of hex characters encoding the shard id in a uniqId
const DefaultPrefixWidth = 2

// --------------------------------------------------------------------------
// Interface Definitions
// --------------------------------------------------------------------------

// IRouter maps a uniqId to the shard that holds the client connection.
// Implementations must be pure: no I/O, no cache, stable for the lifetime of an id.
type IRouter interface {
	// Resolve returns the shard id encoded in uniqId. ok is false if the id does not carry a valid prefix.
	Resolve(uniqId string) (shardId uint64, ok bool)
	// ResolveBulk resolves every id, ids without a valid prefix are omitted
	ResolveBulk(uniqIds []string) map[string]uint64
	// Prefix returns the prefix a gateway puts in front of the uniqIds it issues
	Prefix(shardId uint64) string
}

// --------------------------------------------------------------------------
// Hex prefix router
// --------------------------------------------------------------------------

// hexPrefixRouter reads the shard id from the first width characters of a uniqId, hex encoded
type hexPrefixRouter struct {
	width int
}

// NewHexPrefixRouter creates a router for uniqIds starting with a hex encoded shard id of the given width.
// A width <= 0 selects DefaultPrefixWidth.
func NewHexPrefixRouter(width int) IRouter {
	if width <= 0 {
		width = DefaultPrefixWidth
	}
	return &hexPrefixRouter{width: width}
}

func (r *hexPrefixRouter) Resolve(uniqId string) (uint64, bool) {
	if len(uniqId) < r.width {
		return 0, false
	}
	shardId, err := strconv.ParseUint(uniqId[:r.width], 16, 64)
	if err != nil {
		return 0, false
	}
	return shardId, true
}

func (r *hexPrefixRouter) ResolveBulk(uniqIds []string) map[string]uint64 {
	result := make(map[string]uint64, len(uniqIds))
	for _, id := range uniqIds {
		if shardId, ok := r.Resolve(id); ok {
			result[id] = shardId
		}
	}
	return result
}

func (r *hexPrefixRouter) Prefix(shardId uint64) string {
	return fmt.Sprintf("%0*x", r.width, shardId)
}

// --------------------------------------------------------------------------
// Partitioning
// --------------------------------------------------------------------------

// Group holds the positions of all ids of one shard, in their original relative order
type Group struct {
	ShardID uint64
	Indexes []int
}

// Partition groups the positions of ids by shard. Groups are ordered by the first appearance
// of their shard in ids. Positions of ids without a valid prefix are returned as unroutable.
// Positions (not ids) are returned so callers can keep correlated slices (e.g. payloads) aligned.
func Partition(router IRouter, ids []string) (groups []Group, unroutable []int) {
	pos := make(map[uint64]int)
	for i, id := range ids {
		shardId, ok := router.Resolve(id)
		if !ok {
			unroutable = append(unroutable, i)
			continue
		}
		g, seen := pos[shardId]
		if !seen {
			g = len(groups)
			pos[shardId] = g
			groups = append(groups, Group{ShardID: shardId})
		}
		groups[g].Indexes = append(groups[g].Indexes, i)
	}
	return groups, unroutable
}

// Pick returns the elements of values at the positions of the group
func Pick[T any](values []T, g Group) []T {
	picked := make([]T, len(g.Indexes))
	for i, idx := range g.Indexes {
		picked[i] = values[idx]
	}
	return picked
}
