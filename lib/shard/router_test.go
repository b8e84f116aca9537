package shard

import (
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

// TestResolve tests prefix decoding for valid and invalid ids
func TestResolve(t *testing.T) {
	router := NewHexPrefixRouter(0)

	tests := []struct {
		id      string
		shardId uint64
		ok      bool
	}{
		{"01abcdef", 1, true},
		{"0a", 10, true},
		{"ffxyz", 255, true},
		{"FF123", 255, true},
		{"1", 0, false},
		{"", 0, false},
		{"zz0001", 0, false},
		{"-1abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			shardId, ok := router.Resolve(tt.id)
			if ok != tt.ok || shardId != tt.shardId {
				t.Errorf("Resolve(%q) = %d, %t; expected %d, %t", tt.id, shardId, ok, tt.shardId, tt.ok)
			}
		})
	}
}

// TestPrefixRoundTrip tests that Resolve inverts Prefix
func TestPrefixRoundTrip(t *testing.T) {
	for _, width := range []int{2, 4, 12} {
		router := NewHexPrefixRouter(width)
		for _, shardId := range []uint64{0, 1, 15, 16, 255} {
			id := router.Prefix(shardId) + "0000000000000001"
			if len(router.Prefix(shardId)) != width {
				t.Fatalf("Prefix(%d) with width %d has length %d", shardId, width, len(router.Prefix(shardId)))
			}
			got, ok := router.Resolve(id)
			if !ok || got != shardId {
				t.Errorf("width %d: Resolve(%q) = %d, %t; expected %d", width, id, got, ok, shardId)
			}
		}
	}
}

// TestResolveBulk tests that invalid ids are omitted
func TestResolveBulk(t *testing.T) {
	router := NewHexPrefixRouter(2)
	got := router.ResolveBulk([]string{"01a", "02b", "x", "01c"})
	expected := map[string]uint64{"01a": 1, "02b": 2, "01c": 1}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("ResolveBulk() = %v; expected %v", got, expected)
	}
}

// TestPartitionOrder tests group order and relative order inside the groups
func TestPartitionOrder(t *testing.T) {
	router := NewHexPrefixRouter(2)
	ids := []string{"02a", "01a", "02b", "zz1", "03a", "01b", "02c"}

	groups, unroutable := Partition(router, ids)

	expected := []Group{
		{ShardID: 2, Indexes: []int{0, 2, 6}},
		{ShardID: 1, Indexes: []int{1, 5}},
		{ShardID: 3, Indexes: []int{4}},
	}
	if !reflect.DeepEqual(groups, expected) {
		t.Errorf("Partition() groups = %v; expected %v", groups, expected)
	}
	if !reflect.DeepEqual(unroutable, []int{3}) {
		t.Errorf("Partition() unroutable = %v; expected [3]", unroutable)
	}
	if got := Pick(ids, groups[0]); !reflect.DeepEqual(got, []string{"02a", "02b", "02c"}) {
		t.Errorf("Pick() = %v", got)
	}
}

// TestPartitionProperty tests on random input that every id lands in exactly one
// group of its own shard and the union of all groups is the input multiset
func TestPartitionProperty(t *testing.T) {
	router := NewHexPrefixRouter(2)
	rnd := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		n := rnd.Intn(40)
		ids := make([]string, n)
		for i := range ids {
			// duplicates are allowed on purpose
			ids[i] = fmt.Sprintf("%02x%d", rnd.Intn(5), rnd.Intn(10))
		}

		groups, unroutable := Partition(router, ids)
		if len(unroutable) != 0 {
			t.Fatalf("Unexpected unroutable ids %v", unroutable)
		}

		var seen []int
		shards := make(map[uint64]bool)
		for _, g := range groups {
			if shards[g.ShardID] {
				t.Fatalf("Shard %d has more than one group", g.ShardID)
			}
			shards[g.ShardID] = true

			if !sort.IntsAreSorted(g.Indexes) {
				t.Fatalf("Relative order broken in group %v", g)
			}
			for _, idx := range g.Indexes {
				if s, _ := router.Resolve(ids[idx]); s != g.ShardID {
					t.Fatalf("Id %q sorted into shard %d", ids[idx], g.ShardID)
				}
			}
			seen = append(seen, g.Indexes...)
		}

		sort.Ints(seen)
		for i := range seen {
			if seen[i] != i {
				t.Fatalf("Positions %v are not a permutation of the input", seen)
			}
		}
		if len(seen) != n {
			t.Fatalf("Expected %d positions, got %d", n, len(seen))
		}
	}
}
