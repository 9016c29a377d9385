// Copyright 2025 Trustless Voting System
//
// Ledger manager (C7) — owns one Merkle tree and a reference to the
// election's nullifier set for a single election-question pair.
//
// Grounded on the teacher's Collector (pkg/batch/collector.go) for the
// "one mutex guards one logical unit of append state" shape, generalized
// here to also enforce §4.6's invariant: nullifier-consume and
// tree-extension happen under the same lock, so a submission can never
// leave the tree extended while its nullifier goes unrecorded (or vice
// versa).

package ledger

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/batchqueue"
	"github.com/jasonsutter87/tvs-core/pkg/merkle"
	"github.com/jasonsutter87/tvs-core/pkg/nullifier"
)

// Ledger implements batchqueue.LedgerHandle.
type Ledger struct {
	mu sync.Mutex

	questionID uuid.UUID
	tree       *merkle.Tree
	nullifiers *nullifier.Set
	checkpoint *CheckpointStore

	lastUpdated time.Time
}

// New creates a ledger for questionID, appending into tree and consuming
// from nullifiers. checkpoint may be nil (no persistence, §7
// USE_DATABASE=false).
func New(questionID uuid.UUID, nullifiers *nullifier.Set, checkpoint *CheckpointStore) *Ledger {
	return &Ledger{
		questionID: questionID,
		tree:       merkle.NewTree(),
		nullifiers: nullifiers,
		checkpoint: checkpoint,
	}
}

// Append appends one leaf, first pre-checking and then consuming
// nullifierHex atomically with the tree extension (§4.6 invariant).
func (l *Ledger) Append(nullifierHex string, leaf [32]byte) (uint64, *merkle.InclusionProof, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.nullifiers.Contains(nullifierHex) {
		return 0, nil, ErrDoubleSpend
	}

	position, proof, err := l.tree.Append(leaf)
	if err != nil {
		return 0, nil, err
	}

	if err := l.nullifiers.Consume(nullifierHex, l.questionID, position); err != nil {
		return 0, nil, fmt.Errorf("ledger: invariant violation consuming nullifier after tree extension: %w", err)
	}

	l.persistCheckpointLocked()
	return position, proof, nil
}

// AppendBatch implements batchqueue.LedgerHandle. Entries whose nullifier
// is already consumed (including duplicates within the same batch) are
// filtered out before the tree is extended, so a rejected entry never
// partially advances the tree; every entry that does reach tree.AppendBatch
// has its nullifier consumed immediately afterward, under the same lock,
// preserving §4.6's atomicity invariant per leaf rather than per batch.
func (l *Ledger) AppendBatch(nullifierHexes []string, leaves [][32]byte) ([]batchqueue.AppendResult, error) {
	if len(nullifierHexes) != len(leaves) {
		return nil, ErrMismatchedLengths
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	results := make([]batchqueue.AppendResult, len(leaves))
	validLeaves := make([][32]byte, 0, len(leaves))
	validIdx := make([]int, 0, len(leaves))
	seenThisBatch := make(map[string]bool, len(leaves))

	for i, nh := range nullifierHexes {
		if l.nullifiers.Contains(nh) || seenThisBatch[nh] {
			results[i] = batchqueue.AppendResult{Err: ErrDoubleSpend}
			continue
		}
		seenThisBatch[nh] = true
		validLeaves = append(validLeaves, leaves[i])
		validIdx = append(validIdx, i)
	}

	if len(validLeaves) == 0 {
		return results, nil
	}

	positions, proofs, err := l.tree.AppendBatch(validLeaves)
	if err != nil {
		return nil, err
	}

	for j, idx := range validIdx {
		position := positions[j]
		if err := l.nullifiers.Consume(nullifierHexes[idx], l.questionID, position); err != nil {
			results[idx] = batchqueue.AppendResult{Err: fmt.Errorf("ledger: invariant violation consuming nullifier after tree extension: %w", err)}
			continue
		}
		results[idx] = batchqueue.AppendResult{Position: position, Proof: proofs[j]}
	}

	l.persistCheckpointLocked()
	return results, nil
}

// Snapshot returns the ledger's current root, size, and last-update time
// (§4.6 snapshot()).
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	root := l.tree.Root()
	return Snapshot{
		Root:        hex.EncodeToString(root[:]),
		Size:        l.tree.Size(),
		LastUpdated: l.lastUpdated,
	}
}

// ProofFor returns the inclusion proof for position against the current
// root (§4.6 proof_for()).
func (l *Ledger) ProofFor(position uint64) (*merkle.InclusionProof, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Proof(position)
}

// QuestionID returns the question this ledger belongs to.
func (l *Ledger) QuestionID() uuid.UUID { return l.questionID }

func (l *Ledger) persistCheckpointLocked() {
	l.lastUpdated = time.Now()
	root := l.tree.Root()
	cp := checkpoint{
		Root: hex.EncodeToString(root[:]),
		Size: l.tree.Size(),
		At:   l.lastUpdated,
	}
	if err := l.checkpoint.Save(l.questionID, cp); err != nil {
		// Checkpointing is an optimization; the Merkle tree itself remains
		// the source of truth in memory for the life of the process.
		_ = err
	}
}
