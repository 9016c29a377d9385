// Copyright 2025 Trustless Voting System
//
// Vote ingestion handlers (§4.9 submit_vote, POST /api/vote and
// POST /api/vote/ballot) plus the voter-facing read endpoints
// (GET /api/vote/stats/{electionId}, /api/vote/root/{electionId},
// /api/vote/verify/{nullifier}).
//
// Preconditions are enforced in the order §4.9 lists them: election exists
// and is in voting status, credential's election id matches, nullifier not
// yet consumed, ZK proof shape parses. Full verification is delegated to the
// pluggable verify.Registry; shape-checking alone (verify.ParseShape) is a
// cheap rejection of garbage before that heavier call.

package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/batchqueue"
	"github.com/jasonsutter87/tvs-core/pkg/codec"
	"github.com/jasonsutter87/tvs-core/pkg/crypto/bls"
	"github.com/jasonsutter87/tvs-core/pkg/election"
	"github.com/jasonsutter87/tvs-core/pkg/ledger"
	"github.com/jasonsutter87/tvs-core/pkg/merkle"
	"github.com/jasonsutter87/tvs-core/pkg/verify"
)

// RequireCredentialSignature gates the credential-signature check described
// in §9's resolution of the blind-signature open question: default-on, and
// only actually enforced for elections that registered a credential issuer
// key (SetCredentialIssuerKey). An election with no issuer key on file skips
// the check regardless of this flag.
var RequireCredentialSignature = true

// VoteHandlers serves the ballot-submission and voter-verification surface.
type VoteHandlers struct {
	registry    *Registry
	verifiers   *verify.Registry
	proofSystem verify.System
	queue       *batchqueue.Queue
}

func NewVoteHandlers(registry *Registry, verifiers *verify.Registry, proofSystem verify.System) *VoteHandlers {
	return &VoteHandlers{registry: registry, verifiers: verifiers, proofSystem: proofSystem}
}

// SetQueue wires a batch queue (C6) into the ballot-submission path. When
// set, every accepted ballot is coalesced through the queue instead of
// appending to its ledger directly; BATCH_ENABLED controls whether the
// queue itself batches or flushes synchronously (see Queue.Enqueue). When
// unset, appendEntry falls back to a direct, unbuffered ledger append.
func (h *VoteHandlers) SetQueue(q *batchqueue.Queue) { h.queue = q }

// HandleVote handles POST /api/vote: single-question submission.
func (h *VoteHandlers) HandleVote(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	e, q, err := h.resolveVotingQuestion(req.ElectionID, req.QuestionID, req.Credential)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	resp, err := h.submitOne(r.Context(), e, q, req.Credential, req.EncryptedPayload, req.CommitmentHash, req.ZKProof, req.WriteInLabel)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	code, err := codec.ConfirmationCode()
	if err != nil {
		writeJSONError(w, "internal error generating confirmation code", http.StatusInternalServerError)
		return
	}
	resp.ConfirmationCode = code
	writeJSON(w, resp, http.StatusOK)
}

// HandleBallot handles POST /api/vote/ballot: one credential/nullifier
// consumed once, spanning every question answered.
func (h *VoteHandlers) HandleBallot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Answers) == 0 {
		writeJSONError(w, ErrMissingCandidateAnswers.Error(), http.StatusBadRequest)
		return
	}

	e, err := h.registry.Get(req.ElectionID)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	if e.Status() != election.StatusVoting {
		writeJSONError(w, ErrElectionNotVoting.Error(), statusFor(ErrElectionNotVoting))
		return
	}
	if err := checkCredential(e, req.Credential); err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	results := make([]VoteResponse, 0, len(req.Answers))
	for _, ans := range req.Answers {
		q, err := e.Question(ans.QuestionID)
		if err != nil {
			writeJSONError(w, err.Error(), statusFor(err))
			return
		}
		resp, err := h.appendEntry(r.Context(), e.ID, q, req.Credential, ans.EncryptedPayload, ans.CommitmentHash, ans.ZKProof, ans.WriteInLabel)
		if err != nil {
			writeJSONError(w, err.Error(), statusFor(err))
			return
		}
		results = append(results, resp)
	}

	code, err := codec.ConfirmationCode()
	if err != nil {
		writeJSONError(w, "internal error generating confirmation code", http.StatusInternalServerError)
		return
	}
	writeJSON(w, BallotResponse{ConfirmationCode: code, Results: results}, http.StatusOK)
}

func (h *VoteHandlers) resolveVotingQuestion(electionID, questionID uuid.UUID, cred Credential) (*election.Election, *election.Question, error) {
	e, err := h.registry.Get(electionID)
	if err != nil {
		return nil, nil, err
	}
	if e.Status() != election.StatusVoting {
		return nil, nil, ErrElectionNotVoting
	}
	if err := checkCredential(e, cred); err != nil {
		return nil, nil, err
	}
	q, err := e.Question(questionID)
	if err != nil {
		return nil, nil, err
	}
	return e, q, nil
}

// checkCredential enforces precondition (2) — credential's election id
// matches — and, when an issuer key is registered and the flag is on, the
// signature over the credential payload.
func checkCredential(e *election.Election, cred Credential) error {
	if cred.ElectionID != e.ID {
		return ErrCredentialElectionMismatch
	}
	if !codec.IsHex64(cred.Nullifier) {
		return ErrInvalidNullifier
	}
	issuerKey := e.CredentialIssuerKey()
	if !RequireCredentialSignature || len(issuerKey) == 0 {
		return nil
	}
	pk, err := bls.PublicKeyFromBytes(issuerKey)
	if err != nil {
		return ErrCredentialSignatureInvalid
	}
	sig, err := bls.SignatureFromBytes(cred.Signature)
	if err != nil {
		return ErrCredentialSignatureInvalid
	}
	msg := credentialMessage(cred)
	if !pk.VerifyWithDomain(sig, msg, bls.DomainAttestation) {
		return ErrCredentialSignatureInvalid
	}
	return nil
}

func credentialMessage(cred Credential) []byte {
	h := sha256.New()
	h.Write([]byte(cred.ElectionID.String()))
	h.Write([]byte(":"))
	h.Write([]byte(cred.Nullifier))
	h.Write([]byte(":"))
	h.Write(cred.Payload)
	return h.Sum(nil)
}

// submitOne runs preconditions (3)-(4) and appends one ledger entry.
func (h *VoteHandlers) submitOne(ctx context.Context, e *election.Election, q *election.Question, cred Credential, payload []byte, commitmentHash string, zkProof []byte, writeInLabel string) (VoteResponse, error) {
	return h.appendEntry(ctx, e.ID, q, cred, payload, commitmentHash, zkProof, writeInLabel)
}

func (h *VoteHandlers) appendEntry(ctx context.Context, electionID uuid.UUID, q *election.Question, cred Credential, payload []byte, commitmentHash string, zkProof []byte, writeInLabel string) (VoteResponse, error) {
	// Precondition (3) before (4); Ledger.Append re-checks under its lock.
	if q.Nullifiers != nil && q.Nullifiers.Contains(cred.Nullifier) {
		return VoteResponse{}, ledger.ErrDoubleSpend
	}
	if err := verify.ParseShape(zkProof); err != nil {
		return VoteResponse{}, err
	}
	if h.verifiers != nil {
		ok, err := h.verifiers.Verify(h.proofSystem, payload, zkProof)
		if err != nil {
			return VoteResponse{}, err
		}
		if !ok {
			return VoteResponse{}, verify.ErrMalformedProof
		}
	}

	leaf := codec.Hash256(payload, []byte(commitmentHash))
	position, proof, err := h.appendLeaf(ctx, electionID, q, cred.Nullifier, leaf)
	if err != nil {
		return VoteResponse{}, err
	}

	if writeInLabel == "" {
		if cts, decErr := DecodeCiphertextVector(payload, len(q.Candidates)); decErr == nil {
			for idx, ct := range cts {
				q.AccumulateVote(idx, ct)
			}
		}
	}

	snap := q.Ledger.Snapshot()
	return VoteResponse{
		Position:    position,
		MerkleRoot:  snap.Root,
		MerkleProof: proof,
	}, nil
}

// appendLeaf routes the leaf through the batch queue when one is wired,
// coalescing concurrent submissions to the same question's ledger before
// the tree is extended; with no queue it appends directly, matching the
// behavior before C6 was wired in.
func (h *VoteHandlers) appendLeaf(ctx context.Context, electionID uuid.UUID, q *election.Question, nullifierHex string, leaf [32]byte) (uint64, *merkle.InclusionProof, error) {
	if h.queue == nil {
		return q.Ledger.Append(nullifierHex, leaf)
	}

	fut, err := h.queue.Enqueue(batchqueue.Entry{
		Leaf:         leaf,
		NullifierHex: nullifierHex,
		QuestionID:   q.ID,
		ElectionID:   electionID,
		Ledger:       q.Ledger,
	})
	if err != nil {
		return 0, nil, err
	}
	result, err := fut.Await(ctx)
	if err != nil {
		return 0, nil, err
	}
	return result.Position, result.Proof, nil
}

// HandleStats handles GET /api/vote/stats/{electionId}: root-of-roots and
// per-question snapshots (a supplemented read endpoint).
func (h *VoteHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/api/vote/stats/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	type questionStat struct {
		QuestionID uuid.UUID `json:"questionId"`
		Root       string    `json:"root"`
		Size       uint64    `json:"size"`
	}
	stats := make([]questionStat, 0)
	roots := make([][32]byte, 0)
	for _, q := range e.Questions() {
		if q.Ledger == nil {
			continue
		}
		snap := q.Ledger.Snapshot()
		stats = append(stats, questionStat{QuestionID: q.ID, Root: snap.Root, Size: snap.Size})
		if root, err := codec.DecodeHex32(snap.Root); err == nil {
			roots = append(roots, root)
		}
	}

	var rootOfRoots string
	if len(roots) > 0 {
		var combined [32]byte
		if len(roots) == 1 {
			combined = roots[0]
		} else {
			combined = merkle.RootOfRoots(roots)
		}
		rootOfRoots = hex.EncodeToString(combined[:])
	}

	writeJSON(w, map[string]interface{}{
		"electionId":  e.ID,
		"status":      e.Status(),
		"rootOfRoots": rootOfRoots,
		"questions":   stats,
	}, http.StatusOK)
}

// HandleRoot handles GET /api/vote/root/{electionId}/{questionId}.
func (h *VoteHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rest := strings.TrimPrefix(r.URL.Path, "/api/vote/root/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeJSONError(w, "expected /api/vote/root/{electionId}/{questionId}", http.StatusBadRequest)
		return
	}
	electionID, err := uuid.Parse(parts[0])
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	questionID, err := uuid.Parse(parts[1])
	if err != nil {
		writeJSONError(w, "invalid question id", http.StatusBadRequest)
		return
	}

	e, err := h.registry.Get(electionID)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	q, err := e.Question(questionID)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	if q.Ledger == nil {
		writeJSONError(w, "question ledger not yet open", http.StatusConflict)
		return
	}
	writeJSON(w, q.Ledger.Snapshot(), http.StatusOK)
}

// HandleVerify handles GET /api/vote/verify/{nullifier}: a voter-facing
// lookup returning the ledger coordinates and inclusion proof for a
// nullifier, without exposing which candidate it selected.
func (h *VoteHandlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	nullifierHex := strings.TrimPrefix(r.URL.Path, "/api/vote/verify/")
	if !codec.IsHex64(nullifierHex) {
		writeJSONError(w, ErrInvalidNullifier.Error(), http.StatusBadRequest)
		return
	}

	for _, e := range h.registry.All() {
		if e.Nullifiers == nil {
			continue
		}
		loc, err := e.Nullifiers.Locate(nullifierHex)
		if err != nil {
			continue
		}
		// loc names the question that actually consumed this nullifier; the
		// set is shared across the whole election, so look that question up
		// by id rather than trusting whichever one iteration happened upon.
		q, err := e.Question(loc.QuestionID)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		proof, err := q.Ledger.ProofFor(loc.Position)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"electionId": e.ID,
			"questionId": loc.QuestionID,
			"position":   loc.Position,
			"proof":      proof,
		}, http.StatusOK)
		return
	}
	writeJSONError(w, "nullifier not found", http.StatusNotFound)
}
