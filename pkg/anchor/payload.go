// Copyright 2025 Trustless Voting System
//
// Canonical anchor payloads (§4.8) — built through pkg/codec so that two
// independent builds of the same inputs produce byte-identical JSON and the
// same SHA-256, the anchor-determinism property the election's start/close
// digests depend on.

package anchor

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/codec"
	"github.com/jasonsutter87/tvs-core/pkg/merkle"
)

const (
	startPayloadType = "tvs-election-start"
	closePayloadType = "tvs-election-close"
	payloadVersion   = 1
)

// StartPayload is anchored at the registration->voting transition.
type StartPayload struct {
	Type            string    `json:"type"`
	Version         int       `json:"version"`
	ElectionID      uuid.UUID `json:"electionId"`
	PublicKeyHash   string    `json:"publicKeyHash"`
	ParamsHash      string    `json:"paramsHash"`
	Timestamp       time.Time `json:"timestamp"`
}

// ClosePayload is anchored at the tallying->complete transition.
type ClosePayload struct {
	Type       string    `json:"type"`
	Version    int       `json:"version"`
	ElectionID uuid.UUID `json:"electionId"`
	MerkleRoot string    `json:"merkleRoot"`
	VoteCount  uint64    `json:"voteCount"`
	Timestamp  time.Time `json:"timestamp"`
}

// electionParams is hashed separately from the public key so a payload
// consumer can confirm the ceremony's (t, n) without re-deriving it from the
// key itself.
type electionParams struct {
	Threshold     int `json:"threshold"`
	TotalTrustees int `json:"totalTrustees"`
}

// BuildStartPayload hashes publicKey and (threshold, totalTrustees)
// independently, per §4.8's start payload definition.
func BuildStartPayload(electionID uuid.UUID, publicKey []byte, threshold, totalTrustees int, at time.Time) (StartPayload, []byte, error) {
	pkHash := codec.Hash256Hex(publicKey)

	paramsHash, _, err := codec.HashCanonical(electionParams{Threshold: threshold, TotalTrustees: totalTrustees})
	if err != nil {
		return StartPayload{}, nil, err
	}

	p := StartPayload{
		Type:          startPayloadType,
		Version:       payloadVersion,
		ElectionID:    electionID,
		PublicKeyHash: pkHash,
		ParamsHash:    paramsHash,
		Timestamp:     at,
	}
	_, canon, err := codec.HashCanonical(p)
	if err != nil {
		return StartPayload{}, nil, err
	}
	return p, canon, nil
}

// FinalRoot picks the digest a close payload anchors: a single question's
// own root directly, or merkle.RootOfRoots over all question roots in
// display order when the election has more than one (§4.8).
func FinalRoot(questionRoots [][32]byte) ([32]byte, error) {
	if len(questionRoots) == 0 {
		var zero [32]byte
		return zero, ErrNoQuestions
	}
	if len(questionRoots) == 1 {
		return questionRoots[0], nil
	}
	return merkle.RootOfRoots(questionRoots), nil
}

// BuildClosePayload builds the close payload over the final root (possibly
// a root of roots) and the total accepted vote count.
func BuildClosePayload(electionID uuid.UUID, finalRoot [32]byte, voteCount uint64, at time.Time) (ClosePayload, []byte, error) {
	p := ClosePayload{
		Type:       closePayloadType,
		Version:    payloadVersion,
		ElectionID: electionID,
		MerkleRoot: hex.EncodeToString(finalRoot[:]),
		VoteCount:  voteCount,
		Timestamp:  at,
	}
	_, canon, err := codec.HashCanonical(p)
	if err != nil {
		return ClosePayload{}, nil, err
	}
	return p, canon, nil
}
