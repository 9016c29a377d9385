// Copyright 2025 Trustless Voting System
//
// KVStore persists anchor records to a key-value store, the same pattern
// ledger.CheckpointStore uses for Merkle checkpoints: one JSON blob per
// record id under a fixed key prefix.

package anchor

import (
	"encoding/json"
	"fmt"
)

// KV is the narrow storage interface KVStore depends on; pkg/kvdb.KVAdapter
// satisfies it.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

var keyRecordPrefix = []byte("anchor:record:")

func recordKey(id string) []byte {
	return append(append([]byte{}, keyRecordPrefix...), []byte(id)...)
}

// KVStore implements Store over a KV.
type KVStore struct {
	kv KV
}

// NewKVStore creates a store over kv. kv may be nil, matching Store's
// documented nil-is-valid-no-op contract.
func NewKVStore(kv KV) *KVStore {
	return &KVStore{kv: kv}
}

func (s *KVStore) Save(rec *Record) error {
	if s == nil || s.kv == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("anchor: marshal record: %w", err)
	}
	return s.kv.Set(recordKey(rec.ID.String()), raw)
}
