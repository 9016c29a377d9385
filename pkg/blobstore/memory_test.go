// Copyright 2025 Trustless Voting System

package blobstore

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/batchqueue"
)

func TestMemoryAccumulatesEntries(t *testing.T) {
	m := NewMemory()
	entries := []batchqueue.BlobEntry{
		{QuestionID: uuid.New(), ElectionID: uuid.New(), Position: 0},
		{QuestionID: uuid.New(), ElectionID: uuid.New(), Position: 1},
	}
	if err := m.PutEntries(context.Background(), entries); err != nil {
		t.Fatalf("put entries: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
}
