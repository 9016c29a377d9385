// Copyright 2025 Trustless Voting System

package ingest

import "github.com/google/uuid"

// Credential is the voter credential carried by every vote submission
// (§4.9): election id, a 64-hex nullifier, an opaque payload, and a
// signature over it from the credential-issuing key.
type Credential struct {
	ElectionID uuid.UUID `json:"electionId"`
	Nullifier  string    `json:"nullifier"`
	Payload    []byte    `json:"payload"`
	Signature  []byte    `json:"signature"`
}

// CreateElectionRequest is the POST /api/elections body.
type CreateElectionRequest struct {
	Title     string `json:"title"`
	Threshold int    `json:"threshold"`
	Total     int    `json:"total"`
}

// UpdateStatusRequest is the PATCH /api/elections/{id}/status body.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AddQuestionRequest creates a ballot question on an election still in setup
// through registration.
type AddQuestionRequest struct {
	DisplayName  string   `json:"displayName"`
	Candidates   []string `json:"candidates"`
	WriteInLabel string   `json:"writeInLabel,omitempty"`
}

// RegisterTrusteeRequest is the POST /api/elections/{id}/trustees body.
type RegisterTrusteeRequest struct {
	Name      string `json:"name"`
	PublicKey []byte `json:"publicKey"`
}

// SubmitCommitmentRequest is the POST
// /api/elections/{id}/trustees/{tid}/commitment body.
type SubmitCommitmentRequest struct {
	CommitmentHash      string   `json:"commitmentHash"`
	FeldmanCommitments [][]byte `json:"feldmanCommitments"`
}

// VoteRequest is the POST /api/vote body: a single-question submission.
type VoteRequest struct {
	ElectionID uuid.UUID  `json:"electionId"`
	QuestionID uuid.UUID  `json:"questionId"`
	Credential Credential `json:"credential"`

	EncryptedPayload []byte `json:"encryptedPayload"`
	CommitmentHash   string `json:"commitmentHash"`
	ZKProof          []byte `json:"zkProof"`
	WriteInLabel     string `json:"writeInLabel,omitempty"`
}

// BallotAnswer is one question's answer within a multi-question ballot.
type BallotAnswer struct {
	QuestionID       uuid.UUID `json:"questionId"`
	EncryptedPayload []byte    `json:"encryptedPayload"`
	CommitmentHash   string    `json:"commitmentHash"`
	ZKProof          []byte    `json:"zkProof"`
	WriteInLabel     string    `json:"writeInLabel,omitempty"`
}

// BallotRequest is the POST /api/vote/ballot body: one credential/nullifier
// shared across every answer.
type BallotRequest struct {
	ElectionID uuid.UUID      `json:"electionId"`
	Credential Credential     `json:"credential"`
	Answers    []BallotAnswer `json:"answers"`
}

// VoteResponse carries the confirmation for one accepted vote.
type VoteResponse struct {
	ConfirmationCode string `json:"confirmationCode"`
	Position         uint64 `json:"position"`
	MerkleRoot       string `json:"merkleRoot"`
	MerkleProof      interface{} `json:"merkleProof"`
}

// BallotResponse carries one VoteResponse per question answered.
type BallotResponse struct {
	ConfirmationCode string         `json:"confirmationCode"`
	Results          []VoteResponse `json:"results"`
}

// TallyDecryptRequest is the POST /api/vote/tally/{id}/decrypt body.
type TallyDecryptRequest struct {
	TrusteeID          uuid.UUID           `json:"trusteeId"`
	ShareIndex         uint64              `json:"shareIndex"`
	QuestionID         uuid.UUID           `json:"questionId"`
	PartialDecryptions []PartialDecryption `json:"partialDecryptions"`
}

// PartialDecryption is one trustee's contribution for one candidate index,
// mirroring ceremony.PartialShare at the HTTP boundary (compressed G1 point
// bytes rather than the in-process bls12381.G1Affine).
type PartialDecryption struct {
	CandidateIndex int    `json:"candidateIndex"`
	Partial        []byte `json:"partial"`
}
