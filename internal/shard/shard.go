// Package shard provides shard key generation for distributed DynamoDB tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// Key returns the partition key of shard n under parentRef.
func Key(parentRef string, n int) string {
	return fmt.Sprintf("%s#%02x", parentRef, n)
}

// All returns the partition keys of every shard under parentRef.
func All(parentRef string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	keys := make([]string, numShards)
	for n := range keys {
		keys[n] = Key(parentRef, n)
	}
	return keys
}

// RelationshipPK computes the sharded partition key for a relationship record.
// With numShards=1, all records go to shard "00".
// With numShards>1, records are distributed across shards based on childRef hash.
func RelationshipPK(parentRef, childRef string, numShards int) string {
	if numShards <= 1 {
		return Key(parentRef, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(childRef))
	return Key(parentRef, int(h.Sum32()%uint32(numShards)))
}

// UniqueConstraintPK computes a hash-distributed partition key for the
// constraint "attr of kind is value among the children of parentRef".
func UniqueConstraintPK(parentRef, kind, attr, value string) string {
	data := fmt.Sprintf("%s#%s#%s#%s", parentRef, kind, attr, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}
