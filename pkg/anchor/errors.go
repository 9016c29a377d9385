// Copyright 2025 Trustless Voting System

package anchor

import "errors"

var (
	ErrNoQuestions        = errors.New("anchor: election has no questions to root")
	ErrSubmissionExhausted = errors.New("anchor: external timestamping submission exhausted retries")
	ErrNotConfirmed       = errors.New("anchor: record has no confirmed attestation yet")
)
