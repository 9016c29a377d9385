// Copyright 2025 Trustless Voting System
//
// Sentinel errors for the threshold and decryption ceremonies, grouped the
// way the teacher groups per-package sentinel errors
// (pkg/batch/errors.go, pkg/ledger/errors.go).

package ceremony

import "errors"

var (
	// Threshold (Feldman) ceremony errors.
	ErrWrongPhase          = errors.New("ceremony: operation not legal in current phase")
	ErrCapacityExceeded    = errors.New("ceremony: trustee capacity exceeded")
	ErrTrusteeNotFound     = errors.New("ceremony: trustee not found")
	ErrAlreadyCommitted    = errors.New("ceremony: trustee already submitted a commitment")
	ErrWrongCommitmentSize = errors.New("ceremony: commitment vector length must equal threshold")
	ErrInvalidCurvePoint   = errors.New("ceremony: commitment point does not parse on the curve")
	ErrCommitmentHashMismatch = errors.New("ceremony: commitment hash does not match submitted vector")
	ErrFinalized           = errors.New("ceremony: ceremony already finalized")
	ErrPublicKeyNotReady   = errors.New("ceremony: public key not ready")
	ErrInvalidThreshold    = errors.New("ceremony: threshold must satisfy 1 <= t <= n")

	// Decryption ceremony errors.
	ErrElectionNotVoting      = errors.New("decryption: election must be in voting status to start")
	ErrAlreadyStarted         = errors.New("decryption: ceremony already started")
	ErrNotStarted             = errors.New("decryption: ceremony has not started")
	ErrAlreadyCompleted       = errors.New("decryption: ceremony already completed")
	ErrDuplicateContribution  = errors.New("decryption: trustee already submitted shares")
	ErrUnknownQuestion        = errors.New("decryption: unknown question id")
	ErrDiscreteLogNotFound    = errors.New("decryption: could not recover tally within bounded search space")
)
