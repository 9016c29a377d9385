// Copyright 2025 Trustless Voting System

package election

import "errors"

var (
	ErrIllegalTransition = errors.New("election: illegal status transition")
	ErrNotFound          = errors.New("election: not found")
	ErrQuestionNotFound   = errors.New("election: question not found")
	ErrCeremonyNotFinalized = errors.New("election: threshold ceremony not finalized")
	ErrDecryptionNotCompleted = errors.New("election: decryption ceremony not completed")
)
