// Copyright 2025 Trustless Voting System
//
// Wire encoding for an encrypted ballot payload: one ElGamal ciphertext per
// candidate (the usual 1-of-k homomorphic tallying encoding — a selected
// candidate's slot encrypts 1, every other slot encrypts 0 — so that
// per-candidate sums recovered at decryption time are literal vote counts).
// Shared by the in-process ingestion handlers and the edge-sync server so
// both merge votes into the same accumulator representation.

package ceremony

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type wireCiphertext struct {
	C1 string `json:"c1"`
	C2 string `json:"c2"`
}

// EncodeCiphertextVector serializes one ciphertext per candidate as a
// VoteEntry's encrypted payload.
func EncodeCiphertextVector(cts []Ciphertext) ([]byte, error) {
	wire := make([]wireCiphertext, len(cts))
	for i, ct := range cts {
		c1 := ct.C1.Bytes()
		c2 := ct.C2.Bytes()
		wire[i] = wireCiphertext{C1: hex.EncodeToString(c1[:]), C2: hex.EncodeToString(c2[:])}
	}
	return json.Marshal(wire)
}

// DecodeCiphertextVector parses an encrypted payload into exactly
// wantCandidates ciphertexts.
func DecodeCiphertextVector(payload []byte, wantCandidates int) ([]Ciphertext, error) {
	var wire []wireCiphertext
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("ceremony: decode encrypted payload: %w", err)
	}
	if len(wire) != wantCandidates {
		return nil, fmt.Errorf("ceremony: expected %d candidate ciphertexts, got %d", wantCandidates, len(wire))
	}
	out := make([]Ciphertext, len(wire))
	for i, w := range wire {
		c1b, err := hex.DecodeString(w.C1)
		if err != nil {
			return nil, fmt.Errorf("ceremony: decode c1[%d]: %w", i, err)
		}
		c2b, err := hex.DecodeString(w.C2)
		if err != nil {
			return nil, fmt.Errorf("ceremony: decode c2[%d]: %w", i, err)
		}
		c1, err := ParsePoint(c1b)
		if err != nil {
			return nil, fmt.Errorf("ceremony: parse c1[%d]: %w", i, err)
		}
		c2, err := ParsePoint(c2b)
		if err != nil {
			return nil, fmt.Errorf("ceremony: parse c2[%d]: %w", i, err)
		}
		out[i] = Ciphertext{C1: c1, C2: c2}
	}
	return out, nil
}
