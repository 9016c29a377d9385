// Copyright 2025 Trustless Voting System
//
// Adapted from the teacher's LedgerStore: a thin KV-backed persistence
// layer keyed by a fixed prefix plus an entity id, used here to checkpoint
// a per-question Merkle tree's (root, size) so an in-process restart does
// not need to replay every ballot to recompute it. Actual ballot replay
// for verifiability always remains possible via the blob store; the
// checkpoint is an optimization, not a source of truth.

package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// KV is the narrow storage interface the checkpoint store depends on.
// pkg/kvdb.KVAdapter, an in-memory map, or a lib/pq-backed adapter can all
// satisfy it (§7 USE_DATABASE).
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

var keyCheckpointPrefix = []byte("ledger:checkpoint:")

func checkpointKey(questionID uuid.UUID) []byte {
	return append(append([]byte{}, keyCheckpointPrefix...), []byte(questionID.String())...)
}

// CheckpointStore persists ledger checkpoints. A nil KV makes every
// operation a no-op, matching the teacher's nil-safe KV adapter for
// USE_DATABASE=false development mode.
type CheckpointStore struct {
	kv KV
}

// NewCheckpointStore creates a store over kv. kv may be nil.
func NewCheckpointStore(kv KV) *CheckpointStore {
	return &CheckpointStore{kv: kv}
}

// Save persists the given question's checkpoint.
func (s *CheckpointStore) Save(questionID uuid.UUID, cp checkpoint) error {
	if s == nil || s.kv == nil {
		return nil
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return s.kv.Set(checkpointKey(questionID), raw)
}

// Load retrieves the given question's checkpoint, returning ErrNotFound if
// absent.
func (s *CheckpointStore) Load(questionID uuid.UUID) (checkpoint, error) {
	var cp checkpoint
	if s == nil || s.kv == nil {
		return cp, ErrNotFound
	}
	raw, err := s.kv.Get(checkpointKey(questionID))
	if err != nil {
		return cp, fmt.Errorf("load checkpoint: %w", err)
	}
	if raw == nil {
		return cp, ErrNotFound
	}
	if err := json.Unmarshal(raw, &cp); err != nil {
		return cp, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}
