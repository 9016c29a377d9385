// Copyright 2025 Trustless Voting System
//
// Nullifier Set — O(1) duplicate-credential detection per election.
//
// Grounded on the teacher's sentinel-error + sync.RWMutex-guarded map style
// (pkg/ledger/errors.go) generalized to the
// double-entry map/set the spec requires: a presence set plus a
// nullifier -> (question, position) location index used by the voter
// verification endpoint (§4.2).

package nullifier

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Sentinel errors for nullifier-set operations.
var (
	ErrDoubleSpend = errors.New("nullifier: already consumed")
	ErrNotFound    = errors.New("nullifier: not found")
)

// Location records where a nullifier was consumed: which question's ledger,
// and at what leaf position.
type Location struct {
	QuestionID uuid.UUID
	Position   uint64
}

// Set is a per-election nullifier set. At one million entries the set
// dominates memory (§4.2), so both the presence check and the location
// index share a single map keyed by the raw 64-hex-character string — no
// duplicate byte copies, no secondary allocation per entry beyond the map
// bucket itself.
type Set struct {
	mu      sync.RWMutex
	entries map[string]Location
}

// NewSet creates an empty nullifier set.
func NewSet() *Set {
	return &Set{entries: make(map[string]Location)}
}

// Contains reports whether nullifier has already been consumed.
func (s *Set) Contains(nullifierHex string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[nullifierHex]
	return ok
}

// Consume marks nullifierHex as used, recording where. Returns
// ErrDoubleSpend if it was already present; the set is left unchanged in
// that case (§8 property 2: "the ledger is unchanged").
func (s *Set) Consume(nullifierHex string, questionID uuid.UUID, position uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[nullifierHex]; ok {
		return ErrDoubleSpend
	}
	s.entries[nullifierHex] = Location{QuestionID: questionID, Position: position}
	return nil
}

// Locate returns the ledger coordinates where nullifierHex was consumed.
func (s *Set) Locate(nullifierHex string) (Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.entries[nullifierHex]
	if !ok {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

// Len returns the number of consumed nullifiers, mainly for metrics/tests.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
