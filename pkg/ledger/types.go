// Copyright 2025 Trustless Voting System

package ledger

import "time"

// Snapshot is the ledger's public summary, returned by Ledger.Snapshot
// (§4.6 snapshot()).
type Snapshot struct {
	Root        string    `json:"root"`
	Size        uint64    `json:"size"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// checkpoint is the persisted form of a ledger's tree state, used to
// survive process restarts when a KV store is configured.
type checkpoint struct {
	Root string    `json:"root"`
	Size uint64    `json:"size"`
	At   time.Time `json:"at"`
}
