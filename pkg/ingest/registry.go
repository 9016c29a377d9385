// Copyright 2025 Trustless Voting System
//
// Registry is the single owning map of in-flight elections (§9 design note:
// "Process-wide mutable maps for elections, ceremonies, and ledgers. Replace
// with a single owning registry passed by reference; the registry holds
// each election behind a handle guarded by its own mutex."). Elections
// themselves already guard their own state (pkg/election.Election); the
// registry only guards the map of handles.

package ingest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/election"
	"github.com/jasonsutter87/tvs-core/pkg/ledger"
)

// Registry holds every election known to this process.
type Registry struct {
	mu          sync.Mutex
	elections   map[uuid.UUID]*election.Election
	checkpoints *ledger.CheckpointStore
}

func NewRegistry() *Registry {
	return &Registry{elections: make(map[uuid.UUID]*election.Election)}
}

// SetCheckpointStore wires a checkpoint store into every election created
// from this point forward; elections already registered are unaffected.
func (r *Registry) SetCheckpointStore(store *ledger.CheckpointStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints = store
}

// Create starts a new election behind a fresh threshold ceremony.
func (r *Registry) Create(title string, threshold, total int) (*election.Election, error) {
	e, err := election.New(title, threshold, total)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.SetCheckpointStore(r.checkpoints)
	r.elections[e.ID] = e
	return e, nil
}

// Get looks up an election by id.
func (r *Registry) Get(id uuid.UUID) (*election.Election, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.elections[id]
	if !ok {
		return nil, ErrElectionNotFound
	}
	return e, nil
}

// All returns every election currently registered, for health reporting.
func (r *Registry) All() []*election.Election {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*election.Election, 0, len(r.elections))
	for _, e := range r.elections {
		out = append(out, e)
	}
	return out
}
