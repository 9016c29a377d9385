// Copyright 2025 Trustless Voting System

package anchor

import (
	"testing"

	"github.com/google/uuid"
)

func TestBuildAnchorCallDataLayout(t *testing.T) {
	electionID := uuid.New()
	var hash [32]byte
	hash[0] = 0xFF

	data := BuildAnchorCallData(electionID, hash)
	if len(data) != 4+32+32 {
		t.Fatalf("expected 68-byte call data, got %d", len(data))
	}
	if [4]byte(data[:4]) != anchorSelector {
		t.Fatal("expected leading function selector")
	}
	var electionArg [16]byte
	copy(electionArg[:], data[4:20])
	if electionArg != ([16]byte{}) {
		t.Fatal("expected zero-padded high bytes of electionId argument")
	}
	var gotElectionID [16]byte
	copy(gotElectionID[:], data[20:36])
	if string(gotElectionID[:]) != string(electionID[:]) {
		t.Fatal("expected electionId encoded in low 16 bytes")
	}
	var gotHash [32]byte
	copy(gotHash[:], data[36:68])
	if gotHash != hash {
		t.Fatal("expected dataHash as the final 32-byte argument")
	}
}

func TestKeccak256MatchesKnownVector(t *testing.T) {
	// keccak256("") is a well-known constant used to sanity check the
	// go-ethereum wrapper is wired correctly.
	const emptyKeccak = "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	got := Keccak256(nil)
	if hexString(got[:]) != emptyKeccak {
		t.Fatalf("keccak256(\"\") mismatch: got %s", hexString(got[:]))
	}
}

func TestComputeChainCommitmentDiffersByHeight(t *testing.T) {
	var h [32]byte
	h[0] = 1
	c1 := ComputeChainCommitment(100, h)
	c2 := ComputeChainCommitment(101, h)
	if c1 == c2 {
		t.Fatal("expected different commitments for different block heights")
	}
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, x := range b {
		out[i*2] = digits[x>>4]
		out[i*2+1] = digits[x&0x0f]
	}
	return string(out)
}
