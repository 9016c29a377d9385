// Copyright 2025 Trustless Voting System

package edgesync

import "errors"

var (
	ErrMissingBatchID   = errors.New("edgesync: batch_id is required")
	ErrUnknownNode      = errors.New("edgesync: unknown node id")
	ErrNotRSAKey        = errors.New("edgesync: registered key is not RSA")
	ErrSignatureInvalid = errors.New("edgesync: signature verification failed")
	ErrInvalidNullifier = errors.New("edgesync: nullifier must be 64 hex characters")
)
