// Copyright 2025 Trustless Voting System
//
// End-to-end lifecycle test driving the HTTP handlers directly (handlers
// are plain http.HandlerFunc-shaped methods, so httptest.NewRecorder plus a
// constructed *http.Request is enough), from election creation through a
// finalized tally, mirroring election_test.go's single-trustee-ceremony
// helper pattern.

package ingest

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/ceremony"
	"github.com/jasonsutter87/tvs-core/pkg/codec"
)

// singleTrusteeSecret builds a threshold-1 Feldman commitment vector (one
// point: secret*G) and returns the secret alongside it, so a t=1 ceremony's
// joint public key is reproducible for the decryption half of a test.
func singleTrusteeSecret(t *testing.T) (fr.Element, [][]byte) {
	t.Helper()
	var c fr.Element
	if _, err := c.SetRandom(); err != nil {
		t.Fatalf("random coeff: %v", err)
	}
	point := ceremony.ScalarMul(ceremony.Generator(), ceremony.FrToBigInt(c))
	b := point.Bytes()
	return c, [][]byte{b[:]}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// elgamalEncryptOne encrypts a one-of-k ballot for `selected` and returns
// both the wire payload and the randomness used for every candidate slot,
// so a caller can independently recompute the accumulated C1 a trustee
// needs for its partial decryption.
func elgamalEncryptOne(t *testing.T, pk bls12381.G1Affine, selected, numCandidates int) ([]byte, []fr.Element) {
	t.Helper()
	cts := make([]ceremony.Ciphertext, numCandidates)
	rs := make([]fr.Element, numCandidates)
	for i := 0; i < numCandidates; i++ {
		m := 0
		if i == selected {
			m = 1
		}
		r, err := ceremony.RandomScalar()
		if err != nil {
			t.Fatalf("random r: %v", err)
		}
		rs[i] = r
		rBig := ceremony.FrToBigInt(r)
		c1 := ceremony.ScalarMul(ceremony.Generator(), rBig)
		mG := ceremony.ScalarMul(ceremony.Generator(), big.NewInt(int64(m)))
		rPK := ceremony.ScalarMul(pk, rBig)
		c2 := ceremony.AddPoints(mG, rPK)
		cts[i] = ceremony.Ciphertext{C1: c1, C2: c2}
	}
	payload, err := EncodeCiphertextVector(cts)
	if err != nil {
		t.Fatalf("encode ciphertext vector: %v", err)
	}
	return payload, rs
}

func mustHexNullifier(t *testing.T) string {
	t.Helper()
	n, err := codec.Nullifier()
	if err != nil {
		t.Fatalf("generate nullifier: %v", err)
	}
	return n
}

func pointBytes(p bls12381.G1Affine) []byte {
	b := p.Bytes()
	return b[:]
}

func TestFullElectionLifecycle(t *testing.T) {
	registry := NewRegistry()
	electionH := NewElectionHandlers(registry, nil)
	trusteeH := NewTrusteeHandlers(registry)
	voteH := NewVoteHandlers(registry, nil, "")
	tallyH := NewTallyHandlers(registry)

	rec := doJSON(t, electionH.HandleCreate, http.MethodPost, "/api/elections", CreateElectionRequest{
		Title: "local election", Threshold: 1, Total: 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create election: status %d body %s", rec.Code, rec.Body.String())
	}
	var created electionView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created election: %v", err)
	}

	rec = doJSON(t, electionH.HandleAddQuestion, http.MethodPost, "/api/elections/"+created.ID.String()+"/questions", AddQuestionRequest{
		DisplayName: "Mayor", Candidates: []string{"Alice", "Bob"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add question: status %d body %s", rec.Code, rec.Body.String())
	}
	var question questionView
	if err := json.Unmarshal(rec.Body.Bytes(), &question); err != nil {
		t.Fatalf("decode question: %v", err)
	}

	rec = doJSON(t, trusteeH.HandleRegister, http.MethodPost, "/api/elections/"+created.ID.String()+"/trustees", RegisterTrusteeRequest{
		Name: "trustee-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register trustee: status %d body %s", rec.Code, rec.Body.String())
	}
	var trustee trusteeView
	if err := json.Unmarshal(rec.Body.Bytes(), &trustee); err != nil {
		t.Fatalf("decode trustee: %v", err)
	}

	secret, commitments := singleTrusteeSecret(t)
	hash := codec.Hash256Hex(commitments...)
	commitPath := "/api/elections/" + created.ID.String() + "/trustees/" + trustee.ID.String() + "/commitment"
	rec = doJSON(t, trusteeH.HandleSubmitCommitment, http.MethodPost, commitPath, SubmitCommitmentRequest{
		CommitmentHash: hash, FeldmanCommitments: commitments,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit commitment: status %d body %s", rec.Code, rec.Body.String())
	}

	for _, status := range []string{"draft", "registration", "voting"} {
		rec = doJSON(t, electionH.HandleUpdateStatus, http.MethodPatch, "/api/elections/"+created.ID.String()+"/status", UpdateStatusRequest{Status: status})
		if rec.Code != http.StatusOK {
			t.Fatalf("advance to %s: status %d body %s", status, rec.Code, rec.Body.String())
		}
	}

	e, err := registry.Get(created.ID)
	if err != nil {
		t.Fatalf("get election from registry: %v", err)
	}
	pkBytes, err := e.Ceremony().PublicKeyBytes()
	if err != nil {
		t.Fatalf("public key bytes: %v", err)
	}
	pk, err := ceremony.ParsePoint(pkBytes)
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}

	// Cast three votes for candidate 0 (Alice), tracking the per-ballot
	// randomness used for candidate 0's slot so its accumulated C1 can be
	// recomputed independently of the election's internal bookkeeping.
	const votesForAlice = 3
	var candidate0RSum fr.Element
	candidate0RSum.SetZero()
	nullifiers := make([]string, votesForAlice)
	for i := 0; i < votesForAlice; i++ {
		nh := mustHexNullifier(t)
		nullifiers[i] = nh
		payload, rs := elgamalEncryptOne(t, pk, 0, len(question.Candidates))
		candidate0RSum.Add(&candidate0RSum, &rs[0])

		rec = doJSON(t, voteH.HandleVote, http.MethodPost, "/api/vote", VoteRequest{
			ElectionID:       created.ID,
			QuestionID:       question.ID,
			Credential:       Credential{ElectionID: created.ID, Nullifier: nh},
			EncryptedPayload: payload,
			CommitmentHash:   "commitment-" + nh,
			ZKProof:          []byte("proof-bytes"),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("submit vote: status %d body %s", rec.Code, rec.Body.String())
		}
	}

	// Double-spend on an already-consumed nullifier is rejected.
	payload, _ := elgamalEncryptOne(t, pk, 0, len(question.Candidates))
	rec = doJSON(t, voteH.HandleVote, http.MethodPost, "/api/vote", VoteRequest{
		ElectionID: created.ID, QuestionID: question.ID,
		Credential: Credential{ElectionID: created.ID, Nullifier: nullifiers[0]},
		EncryptedPayload: payload, CommitmentHash: "x", ZKProof: []byte("proof-bytes"),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict on double-spend, got %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, electionH.HandleUpdateStatus, http.MethodPatch, "/api/elections/"+created.ID.String()+"/status", UpdateStatusRequest{Status: "tallying"})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance to tallying: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, tallyH.HandleStart, http.MethodPost, "/api/vote/tally/"+created.ID.String()+"/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start tally: status %d body %s", rec.Code, rec.Body.String())
	}

	d := e.Decryption()
	if d.Status().Phase != ceremony.DecryptionInProgress {
		t.Fatalf("expected in-progress decryption, got %s", d.Status().Phase)
	}

	// Single-trustee threshold: share index 1 holds the whole secret, so its
	// partial for candidate 0 is secret * accumulatedC1 = secret * (rSum*G).
	accC1 := ceremony.ScalarMul(ceremony.Generator(), ceremony.FrToBigInt(candidate0RSum))
	partial := ceremony.ScalarMul(accC1, ceremony.FrToBigInt(secret))
	rec = doJSON(t, tallyH.HandleDecrypt, http.MethodPost, "/api/vote/tally/"+created.ID.String()+"/decrypt", TallyDecryptRequest{
		TrusteeID:  trustee.ID,
		ShareIndex: 1,
		QuestionID: question.ID,
		PartialDecryptions: []PartialDecryption{
			{CandidateIndex: 0, Partial: pointBytes(partial)},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit partial decryption: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, tallyH.HandleStatus, http.MethodGet, "/api/vote/tally/"+created.ID.String()+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tally status: status %d body %s", rec.Code, rec.Body.String())
	}
	var statusBody struct {
		Results []struct {
			QuestionID uuid.UUID      `json:"questionId"`
			Tallies    map[string]int `json:"tallies"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &statusBody); err != nil {
		t.Fatalf("decode tally status: %v", err)
	}
	if len(statusBody.Results) != 1 || statusBody.Results[0].Tallies["Alice"] != votesForAlice {
		t.Fatalf("expected Alice=%d, got %+v", votesForAlice, statusBody.Results)
	}

	rec = doJSON(t, tallyH.HandleComplete, http.MethodPost, "/api/vote/tally/"+created.ID.String()+"/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete tally: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, electionH.HandleUpdateStatus, http.MethodPatch, "/api/elections/"+created.ID.String()+"/status", UpdateStatusRequest{Status: "complete"})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance to complete: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyEndpointLocatesNullifier(t *testing.T) {
	registry := NewRegistry()
	electionH := NewElectionHandlers(registry, nil)
	trusteeH := NewTrusteeHandlers(registry)
	voteH := NewVoteHandlers(registry, nil, "")

	rec := doJSON(t, electionH.HandleCreate, http.MethodPost, "/api/elections", CreateElectionRequest{Title: "e", Threshold: 1, Total: 1})
	var created electionView
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, electionH.HandleAddQuestion, http.MethodPost, "/api/elections/"+created.ID.String()+"/questions", AddQuestionRequest{DisplayName: "Q", Candidates: []string{"A", "B"}})
	var question questionView
	json.Unmarshal(rec.Body.Bytes(), &question)

	rec = doJSON(t, trusteeH.HandleRegister, http.MethodPost, "/api/elections/"+created.ID.String()+"/trustees", RegisterTrusteeRequest{Name: "t"})
	var trustee trusteeView
	json.Unmarshal(rec.Body.Bytes(), &trustee)

	secret, commitments := singleTrusteeSecret(t)
	hash := codec.Hash256Hex(commitments...)
	doJSON(t, trusteeH.HandleSubmitCommitment, http.MethodPost, "/api/elections/"+created.ID.String()+"/trustees/"+trustee.ID.String()+"/commitment", SubmitCommitmentRequest{CommitmentHash: hash, FeldmanCommitments: commitments})
	_ = secret

	for _, status := range []string{"draft", "registration", "voting"} {
		rec = doJSON(t, electionH.HandleUpdateStatus, http.MethodPatch, "/api/elections/"+created.ID.String()+"/status", UpdateStatusRequest{Status: status})
		if rec.Code != http.StatusOK {
			t.Fatalf("advance to %s: %d %s", status, rec.Code, rec.Body.String())
		}
	}

	e, _ := registry.Get(created.ID)
	pkBytes, _ := e.Ceremony().PublicKeyBytes()
	pk, err := ceremony.ParsePoint(pkBytes)
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}

	nh := mustHexNullifier(t)
	payload, _ := elgamalEncryptOne(t, pk, 1, len(question.Candidates))
	rec = doJSON(t, voteH.HandleVote, http.MethodPost, "/api/vote", VoteRequest{
		ElectionID: created.ID, QuestionID: question.ID,
		Credential:       Credential{ElectionID: created.ID, Nullifier: nh},
		EncryptedPayload: payload, CommitmentHash: "c", ZKProof: []byte("p"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit vote: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, voteH.HandleVerify, http.MethodGet, "/api/vote/verify/"+nh, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, voteH.HandleVerify, http.MethodGet, "/api/vote/verify/"+mustHexNullifier(t), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected not found for unused nullifier, got %d", rec.Code)
	}
}
