// Copyright 2025 Trustless Voting System

package anchor

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes a start anchor from a close anchor (§4.8).
type Kind string

const (
	KindStart Kind = "start"
	KindClose Kind = "close"
)

// Status is the anchor record's confirmation lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusBroadcast Status = "broadcast"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is one anchor attempt, persisted independently of the election
// status change that triggered it (§8: anchoring failure never rolls back
// the transition).
type Record struct {
	ID         uuid.UUID
	ElectionID uuid.UUID
	Kind       Kind
	DataHash   [32]byte
	Payload    []byte // raw canonical JSON of the anchored payload
	ProofBlob  []byte // external timestamping service's proof, may be nil while pending

	BlockHeight uint64
	BlockHash   string

	Status Status

	CreatedAt   time.Time
	BroadcastAt time.Time
	ConfirmedAt time.Time
}

// Store persists anchor records. A nil Store is a valid no-op, mirroring
// ledger.CheckpointStore's treatment of USE_DATABASE=false.
type Store interface {
	Save(rec *Record) error
}
