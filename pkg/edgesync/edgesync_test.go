// Copyright 2025 Trustless Voting System

package edgesync

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"math/big"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/ceremony"
	"github.com/jasonsutter87/tvs-core/pkg/codec"
	"github.com/jasonsutter87/tvs-core/pkg/election"
	"github.com/jasonsutter87/tvs-core/pkg/ingest"
)

// bringToVoting creates a single-trustee, single-question election and
// advances it through registration to voting status, mirroring
// pkg/ingest's own lifecycle test helper pattern.
func bringToVoting(t *testing.T) (*ingest.Registry, *election.Election, uuid.UUID) {
	t.Helper()
	registry := ingest.NewRegistry()
	e, err := registry.Create("edge election", 1, 1)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	q, err := e.AddQuestion("Mayor", []string{"Alice", "Bob"}, "")
	if err != nil {
		t.Fatalf("add question: %v", err)
	}

	trustee, err := e.Ceremony().RegisterTrustee("trustee-1", nil)
	if err != nil {
		t.Fatalf("register trustee: %v", err)
	}
	coeff, err := ceremony.RandomScalar()
	if err != nil {
		t.Fatalf("random scalar: %v", err)
	}
	point := ceremony.ScalarMul(ceremony.Generator(), ceremony.FrToBigInt(coeff))
	pb := point.Bytes()
	commitments := [][]byte{pb[:]}
	hash := codec.Hash256Hex(commitments...)
	if err := e.Ceremony().SubmitCommitment(trustee.ID, hash, commitments); err != nil {
		t.Fatalf("submit commitment: %v", err)
	}

	for _, to := range []election.Status{election.StatusDraft, election.StatusRegistration, election.StatusVoting} {
		if err := e.Advance(to); err != nil {
			t.Fatalf("advance to %s: %v", to, err)
		}
	}

	return registry, e, q.ID
}

func encryptOne(t *testing.T, pk bls12381.G1Affine, selected, numCandidates int) []byte {
	t.Helper()
	cts := make([]ceremony.Ciphertext, numCandidates)
	for i := 0; i < numCandidates; i++ {
		m := 0
		if i == selected {
			m = 1
		}
		r, err := ceremony.RandomScalar()
		if err != nil {
			t.Fatalf("random r: %v", err)
		}
		rBig := ceremony.FrToBigInt(r)
		c1 := ceremony.ScalarMul(ceremony.Generator(), rBig)
		mG := ceremony.ScalarMul(ceremony.Generator(), big.NewInt(int64(m)))
		rPK := ceremony.ScalarMul(pk, rBig)
		c2 := ceremony.AddPoints(mG, rPK)
		cts[i] = ceremony.Ciphertext{C1: c1, C2: c2}
	}
	payload, err := ceremony.EncodeCiphertextVector(cts)
	if err != nil {
		t.Fatalf("encode ciphertext vector: %v", err)
	}
	return payload
}

func genRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, msg []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(msg)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

func TestSubmitRejectsUnknownNode(t *testing.T) {
	registry := ingest.NewRegistry()
	e, err := registry.Create("e", 1, 1)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	server := NewServer(registry, NewNodeKeyRegistry())

	_, err = server.Submit(SyncRequest{BatchID: "b1", NodeID: "ghost", ElectionID: e.ID}, 1000)
	if err != ErrUnknownNode {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
}

func TestSubmitRejectsBadSignature(t *testing.T) {
	registry := ingest.NewRegistry()
	e, err := registry.Create("e", 1, 1)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	key := genRSAKey(t)
	keys := NewNodeKeyRegistry()
	keys.RegisterKey("node-1", &key.PublicKey)
	server := NewServer(registry, keys)

	_, err = server.Submit(SyncRequest{
		BatchID: "b1", NodeID: "node-1", ElectionID: e.ID,
		BatchMerkleRoot: "deadbeef", Signature: []byte("not a signature"),
	}, 1000)
	if err != ErrSignatureInvalid {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestSubmitMergesBatchAndIsIdempotent(t *testing.T) {
	registry, e, questionID := bringToVoting(t)
	pkBytes, err := e.Ceremony().PublicKeyBytes()
	if err != nil {
		t.Fatalf("ceremony public key: %v", err)
	}
	pkPoint, err := ceremony.ParsePoint(pkBytes)
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}

	key := genRSAKey(t)
	keys := NewNodeKeyRegistry()
	keys.RegisterKey("node-1", &key.PublicKey)
	server := NewServer(registry, keys)

	n1, err := codec.Nullifier()
	if err != nil {
		t.Fatalf("nullifier: %v", err)
	}
	n2, err := codec.Nullifier()
	if err != nil {
		t.Fatalf("nullifier: %v", err)
	}

	payload1 := encryptOne(t, pkPoint, 0, 2)
	payload2 := encryptOne(t, pkPoint, 1, 2)

	req := SyncRequest{
		BatchID:    "batch-1",
		NodeID:     "node-1",
		ElectionID: e.ID,
		Votes: []VoteEntry{
			{QuestionID: questionID, Nullifier: n1, EncryptedPayload: payload1, CommitmentHash: "c1"},
			{QuestionID: questionID, Nullifier: n2, EncryptedPayload: payload2, CommitmentHash: "c2"},
		},
		BatchMerkleRoot: "deadbeef",
	}
	msg := SigningMessage(req.BatchID, req.BatchMerkleRoot, req.ElectionID.String(), req.NodeID)
	req.Signature = sign(t, key, msg)

	resp, err := server.Submit(req, 1000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Accepted != 2 {
		t.Fatalf("expected 2 accepted, got %d (rejected %+v)", resp.Accepted, resp.Rejected)
	}
	if resp.CloudMerkleRoot == "" {
		t.Fatalf("expected non-empty cloud merkle root")
	}

	again, err := server.Submit(req, 9999)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.ProcessedAt != resp.ProcessedAt {
		t.Fatalf("expected idempotent resubmission to return the original result, got processedAt %d want %d", again.ProcessedAt, resp.ProcessedAt)
	}
	if again.Accepted != 2 {
		t.Fatalf("expected cached accepted count 2, got %d", again.Accepted)
	}
}

func TestSubmitRejectsDoubleSpendWithinSecondBatch(t *testing.T) {
	registry, e, questionID := bringToVoting(t)
	pkBytes, err := e.Ceremony().PublicKeyBytes()
	if err != nil {
		t.Fatalf("ceremony public key: %v", err)
	}
	pkPoint, err := ceremony.ParsePoint(pkBytes)
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}
	key := genRSAKey(t)
	keys := NewNodeKeyRegistry()
	keys.RegisterKey("node-1", &key.PublicKey)
	server := NewServer(registry, keys)

	n1, err := codec.Nullifier()
	if err != nil {
		t.Fatalf("nullifier: %v", err)
	}
	payload := encryptOne(t, pkPoint, 0, 2)

	first := SyncRequest{
		BatchID: "batch-a", NodeID: "node-1", ElectionID: e.ID,
		Votes:           []VoteEntry{{QuestionID: questionID, Nullifier: n1, EncryptedPayload: payload, CommitmentHash: "c1"}},
		BatchMerkleRoot: "root-a",
	}
	first.Signature = sign(t, key, SigningMessage(first.BatchID, first.BatchMerkleRoot, first.ElectionID.String(), first.NodeID))
	if _, err := server.Submit(first, 1000); err != nil {
		t.Fatalf("submit first batch: %v", err)
	}

	second := SyncRequest{
		BatchID: "batch-b", NodeID: "node-1", ElectionID: e.ID,
		Votes:           []VoteEntry{{QuestionID: questionID, Nullifier: n1, EncryptedPayload: payload, CommitmentHash: "c1"}},
		BatchMerkleRoot: "root-b",
	}
	second.Signature = sign(t, key, SigningMessage(second.BatchID, second.BatchMerkleRoot, second.ElectionID.String(), second.NodeID))
	resp, err := server.Submit(second, 2000)
	if err != nil {
		t.Fatalf("submit second batch: %v", err)
	}
	if resp.Accepted != 0 || len(resp.Rejected) != 1 {
		t.Fatalf("expected the repeated nullifier to be rejected, got accepted=%d rejected=%+v", resp.Accepted, resp.Rejected)
	}
}
