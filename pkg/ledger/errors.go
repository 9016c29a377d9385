// Copyright 2025 Trustless Voting System
//
// Sentinel errors for the ledger manager (C7), grouped the way the teacher
// groups per-package sentinel errors.

package ledger

import "errors"

var (
	ErrDoubleSpend       = errors.New("ledger: nullifier already consumed")
	ErrMismatchedLengths = errors.New("ledger: nullifiers and leaves must be the same length")
	ErrNotFound          = errors.New("ledger: checkpoint not found")
)
