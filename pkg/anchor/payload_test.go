// Copyright 2025 Trustless Voting System

package anchor

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildStartPayloadDeterministic(t *testing.T) {
	electionID := uuid.New()
	pubKey := []byte{1, 2, 3, 4}
	at := time.Unix(1_700_000_000, 0).UTC()

	p1, canon1, err := BuildStartPayload(electionID, pubKey, 2, 3, at)
	if err != nil {
		t.Fatalf("build 1: %v", err)
	}
	p2, canon2, err := BuildStartPayload(electionID, pubKey, 2, 3, at)
	if err != nil {
		t.Fatalf("build 2: %v", err)
	}

	if string(canon1) != string(canon2) {
		t.Fatalf("expected byte-identical canonical payloads, got %s vs %s", canon1, canon2)
	}
	if p1.PublicKeyHash != p2.PublicKeyHash || p1.ParamsHash != p2.ParamsHash {
		t.Fatal("expected identical hashes across independent builds")
	}
}

func TestBuildStartPayloadParamsHashSensitiveToThreshold(t *testing.T) {
	electionID := uuid.New()
	pubKey := []byte{1, 2, 3}
	at := time.Now()

	p1, _, _ := BuildStartPayload(electionID, pubKey, 2, 3, at)
	p2, _, _ := BuildStartPayload(electionID, pubKey, 3, 3, at)
	if p1.ParamsHash == p2.ParamsHash {
		t.Fatal("expected different params hash for different threshold")
	}
}

func TestFinalRootSingleQuestionPassesThrough(t *testing.T) {
	var root [32]byte
	root[0] = 0xAB
	got, err := FinalRoot([][32]byte{root})
	if err != nil {
		t.Fatalf("final root: %v", err)
	}
	if got != root {
		t.Fatal("single-question final root must equal that question's own root")
	}
}

func TestFinalRootMultiQuestionDiffersFromEither(t *testing.T) {
	var r1, r2 [32]byte
	r1[0] = 1
	r2[0] = 2
	got, err := FinalRoot([][32]byte{r1, r2})
	if err != nil {
		t.Fatalf("final root: %v", err)
	}
	if got == r1 || got == r2 {
		t.Fatal("root-of-roots must differ from either input root")
	}
}

func TestFinalRootRejectsEmpty(t *testing.T) {
	if _, err := FinalRoot(nil); err != ErrNoQuestions {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestBuildClosePayloadDeterministic(t *testing.T) {
	electionID := uuid.New()
	var root [32]byte
	root[0] = 9
	at := time.Unix(1_700_000_000, 0).UTC()

	_, canon1, err := BuildClosePayload(electionID, root, 42, at)
	if err != nil {
		t.Fatalf("build 1: %v", err)
	}
	_, canon2, err := BuildClosePayload(electionID, root, 42, at)
	if err != nil {
		t.Fatalf("build 2: %v", err)
	}
	if string(canon1) != string(canon2) {
		t.Fatal("expected byte-identical close payloads across independent builds")
	}
}
