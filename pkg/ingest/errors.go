// Copyright 2025 Trustless Voting System

package ingest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jasonsutter87/tvs-core/pkg/ceremony"
	"github.com/jasonsutter87/tvs-core/pkg/election"
	"github.com/jasonsutter87/tvs-core/pkg/ledger"
	"github.com/jasonsutter87/tvs-core/pkg/nullifier"
)

var (
	ErrElectionNotFound        = errors.New("ingest: election not found")
	ErrElectionNotVoting       = errors.New("ingest: election is not in voting status")
	ErrCredentialElectionMismatch = errors.New("ingest: credential election id does not match")
	ErrInvalidNullifier        = errors.New("ingest: nullifier must be 64 hex characters")
	ErrMissingCandidateAnswers = errors.New("ingest: ballot must carry one answer per question")
	ErrCredentialSignatureInvalid = errors.New("ingest: credential signature failed verification")
)

// writeJSONError writes a {"error": "..."} body with status, mirroring
// pkg/server/batch_handlers.go's writeJSONError.
func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a sentinel error to the HTTP status §6 assigns to it:
// 404 missing, 409 conflict/double-spend, 400 validation, 500 otherwise.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrElectionNotFound),
		errors.Is(err, election.ErrQuestionNotFound),
		errors.Is(err, ceremony.ErrTrusteeNotFound),
		errors.Is(err, ceremony.ErrUnknownQuestion):
		return http.StatusNotFound
	case errors.Is(err, nullifier.ErrDoubleSpend), errors.Is(err, ledger.ErrDoubleSpend):
		return http.StatusConflict
	case errors.Is(err, election.ErrIllegalTransition),
		errors.Is(err, election.ErrCeremonyNotFinalized),
		errors.Is(err, election.ErrDecryptionNotCompleted),
		errors.Is(err, ceremony.ErrWrongPhase),
		errors.Is(err, ceremony.ErrAlreadyCommitted),
		errors.Is(err, ceremony.ErrFinalized),
		errors.Is(err, ceremony.ErrAlreadyStarted),
		errors.Is(err, ceremony.ErrNotStarted),
		errors.Is(err, ceremony.ErrAlreadyCompleted),
		errors.Is(err, ceremony.ErrDuplicateContribution):
		return http.StatusConflict
	case errors.Is(err, ErrElectionNotVoting),
		errors.Is(err, ErrCredentialElectionMismatch),
		errors.Is(err, ErrInvalidNullifier),
		errors.Is(err, ErrMissingCandidateAnswers),
		errors.Is(err, ErrCredentialSignatureInvalid),
		errors.Is(err, ceremony.ErrCapacityExceeded),
		errors.Is(err, ceremony.ErrWrongCommitmentSize),
		errors.Is(err, ceremony.ErrInvalidCurvePoint),
		errors.Is(err, ceremony.ErrCommitmentHashMismatch),
		errors.Is(err, ceremony.ErrPublicKeyNotReady),
		errors.Is(err, ceremony.ErrInvalidThreshold),
		errors.Is(err, ceremony.ErrDiscreteLogNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
