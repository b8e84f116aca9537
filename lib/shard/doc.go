// Package shard resolves the gateway shard of a client from its uniqId.
//
// Every gateway shard prefixes the uniqIds it issues with its own shard id, hex encoded
// with a fixed width (two characters by default, "0a" for shard 10). Resolving a shard is
// therefore a pure string operation; no lookup table or remote call is involved.
//
// Partition groups a list of ids by shard while keeping the relative order of the ids
// inside each group and ordering the groups by first appearance. It returns positions,
// so bulk operations can split correlated slices (ids and payloads) consistently.
package shard
