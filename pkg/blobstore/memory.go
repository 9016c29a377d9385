// Copyright 2025 Trustless Voting System
//
// In-process blob store, the USE_DATABASE=false adapter the ambient stack
// section calls for. Backs batchqueue.Blob with a plain guarded slice;
// durability is process-lifetime only.

package blobstore

import (
	"context"
	"sync"

	"github.com/jasonsutter87/tvs-core/pkg/batchqueue"
)

// Memory implements batchqueue.Blob entirely in process memory.
type Memory struct {
	mu      sync.Mutex
	entries []batchqueue.BlobEntry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) PutEntries(ctx context.Context, entries []batchqueue.BlobEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

// Len reports how many entries have been durably recorded, for tests and
// health reporting.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
