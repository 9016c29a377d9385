// Copyright 2025 Trustless Voting System
//
// Edge-sync server (§4.10, C11): merges signed batches of votes collected by
// a remote edge node into the cloud ledgers. Each batch is signed by the
// submitting node's RSA private key; the cloud verifies against a public
// key registered for that node_id and rejects unknown nodes. Batches are
// idempotent on batch_id: a resubmission returns the original result rather
// than appending twice.
//
// RSA/x509 (stdlib crypto/rsa, crypto/x509) is used here rather than a
// third-party signature library because no part of the retrieved corpus
// carries an RSA dependency; PKCS#1 v1.5 over a SHA-256 digest is the
// interoperable choice for a remote node signing with an arbitrary keypair.
package edgesync

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/ceremony"
	"github.com/jasonsutter87/tvs-core/pkg/codec"
	"github.com/jasonsutter87/tvs-core/pkg/election"
	"github.com/jasonsutter87/tvs-core/pkg/merkle"
)

// NodeKeyRegistry holds the RSA public key registered for each edge node.
type NodeKeyRegistry struct {
	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

func NewNodeKeyRegistry() *NodeKeyRegistry {
	return &NodeKeyRegistry{keys: make(map[string]*rsa.PublicKey)}
}

// Register associates a node id with a PEM- or DER-encoded PKIX public key.
func (r *NodeKeyRegistry) Register(nodeID string, der []byte) error {
	pub, err := parsePublicKey(der)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[nodeID] = pub
	return nil
}

// RegisterKey associates a node id directly with a parsed public key, for
// tests and in-process callers that already hold an *rsa.PrivateKey.
func (r *NodeKeyRegistry) RegisterKey(nodeID string, pub *rsa.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[nodeID] = pub
}

func (r *NodeKeyRegistry) lookup(nodeID string) (*rsa.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pub, ok := r.keys[nodeID]
	return pub, ok
}

func parsePublicKey(data []byte) (*rsa.PublicKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("edgesync: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return rsaPub, nil
}

// SigningMessage builds the exact byte string a node's private key signs:
// batch_id:batch_merkle_root:election_id:node_id.
func SigningMessage(batchID, batchMerkleRoot, electionID, nodeID string) []byte {
	return []byte(batchID + ":" + batchMerkleRoot + ":" + electionID + ":" + nodeID)
}

func verify(pub *rsa.PublicKey, message, signature []byte) error {
	digest := sha256.Sum256(message)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

// ElectionLookup is the subset of pkg/ingest's Registry the edge-sync server
// needs: resolving an election id to its in-process handle. Declared as an
// interface here rather than importing pkg/ingest directly, so this package
// stays usable standalone (e.g. from tests that stand up elections without
// the HTTP layer).
type ElectionLookup interface {
	Get(id uuid.UUID) (*election.Election, error)
}

// Server merges signed edge batches into an election's ledgers.
type Server struct {
	registry ElectionLookup
	keys     *NodeKeyRegistry

	mu      sync.Mutex
	results map[string]SyncResponse // batch_id -> prior result, for idempotency
}

// NewServer wires an edge-sync server against an election registry and a
// node-key registry.
func NewServer(registry ElectionLookup, keys *NodeKeyRegistry) *Server {
	return &Server{registry: registry, keys: keys, results: make(map[string]SyncResponse)}
}

// VoteEntry is one vote carried in a signed batch.
type VoteEntry struct {
	QuestionID       uuid.UUID `json:"questionId"`
	Nullifier        string    `json:"nullifier"`
	EncryptedPayload []byte    `json:"encryptedPayload"`
	CommitmentHash   string    `json:"commitmentHash"`
	ZKProof          []byte    `json:"zkProof"`
	WriteInLabel     string    `json:"writeInLabel,omitempty"`
}

// SyncRequest is the POST /api/sync/upload body (§4.10).
type SyncRequest struct {
	BatchID         string      `json:"batch_id"`
	NodeID          string      `json:"node_id"`
	ElectionID      uuid.UUID   `json:"election_id"`
	Votes           []VoteEntry `json:"votes"`
	BatchMerkleRoot string      `json:"batch_merkle_root"`
	Signature       []byte      `json:"signature"`
	SubmittedAt     int64       `json:"submitted_at"`
}

// RejectedVote reports why one entry in a batch did not reach the ledger.
type RejectedVote struct {
	Nullifier string `json:"nullifier"`
	Reason    string `json:"reason"`
}

// SyncResponse is the POST /api/sync/upload result.
type SyncResponse struct {
	BatchID            string         `json:"batch_id"`
	CloudStartPosition uint64         `json:"cloud_start_position"`
	Accepted           int            `json:"accepted"`
	Rejected           []RejectedVote `json:"rejected"`
	CloudMerkleRoot    string         `json:"cloud_merkle_root"`
	ProcessedAt        int64          `json:"processed_at"`
}

// Submit verifies a signed batch and merges its votes into the target
// election's ledgers. now is the caller-supplied wall-clock reading for
// processed_at (kept out of this package so it never calls time.Now
// itself, matching the no-hidden-clock convention the ledger checkpoint
// code already follows).
func (s *Server) Submit(req SyncRequest, now int64) (SyncResponse, error) {
	if req.BatchID == "" {
		return SyncResponse{}, ErrMissingBatchID
	}

	s.mu.Lock()
	if prior, ok := s.results[req.BatchID]; ok {
		s.mu.Unlock()
		return prior, nil
	}
	s.mu.Unlock()

	pub, ok := s.keys.lookup(req.NodeID)
	if !ok {
		return SyncResponse{}, ErrUnknownNode
	}
	msg := SigningMessage(req.BatchID, req.BatchMerkleRoot, req.ElectionID.String(), req.NodeID)
	if err := verify(pub, msg, req.Signature); err != nil {
		return SyncResponse{}, err
	}

	e, err := s.registry.Get(req.ElectionID)
	if err != nil {
		return SyncResponse{}, err
	}
	if e.Status() != election.StatusVoting {
		return SyncResponse{}, election.ErrIllegalTransition
	}

	resp, err := s.merge(e, req, now)
	if err != nil {
		return SyncResponse{}, err
	}

	s.mu.Lock()
	s.results[req.BatchID] = resp
	s.mu.Unlock()
	return resp, nil
}

// merge groups the batch's votes by question (a batch is collected by one
// edge node for one election, but may span more than one question) and
// appends each group to its ledger via AppendBatch, the same bulk path used
// by the in-process batch queue (C6). Individually invalid entries
// (unknown question, already-consumed nullifier) are rejected without
// failing the rest of the batch.
func (s *Server) merge(e *election.Election, req SyncRequest, now int64) (SyncResponse, error) {
	type group struct {
		question *election.Question
		indices  []int
		leaves   [][32]byte
		nulls    []string
	}
	groups := make(map[uuid.UUID]*group)
	order := make([]uuid.UUID, 0)
	rejected := make([]RejectedVote, 0)

	for i, v := range req.Votes {
		q, err := e.Question(v.QuestionID)
		if err != nil {
			rejected = append(rejected, RejectedVote{Nullifier: v.Nullifier, Reason: err.Error()})
			continue
		}
		if !codec.IsHex64(v.Nullifier) {
			rejected = append(rejected, RejectedVote{Nullifier: v.Nullifier, Reason: ErrInvalidNullifier.Error()})
			continue
		}
		g, ok := groups[q.ID]
		if !ok {
			g = &group{question: q}
			groups[q.ID] = g
			order = append(order, q.ID)
		}
		leaf := codec.Hash256(v.EncryptedPayload, []byte(v.CommitmentHash))
		g.leaves = append(g.leaves, leaf)
		g.nulls = append(g.nulls, v.Nullifier)
		g.indices = append(g.indices, i)
	}

	var startPosition uint64
	havePosition := false
	accepted := 0
	roots := make([][32]byte, 0, len(order))

	for _, qid := range order {
		g := groups[qid]
		results, err := g.question.Ledger.AppendBatch(g.nulls, g.leaves)
		if err != nil {
			return SyncResponse{}, err
		}
		for j, res := range results {
			v := req.Votes[g.indices[j]]
			if res.Err != nil {
				rejected = append(rejected, RejectedVote{Nullifier: v.Nullifier, Reason: res.Err.Error()})
				continue
			}
			if !havePosition {
				startPosition = res.Position
				havePosition = true
			}
			if v.WriteInLabel == "" {
				if cts, decErr := ceremony.DecodeCiphertextVector(v.EncryptedPayload, len(g.question.Candidates)); decErr == nil {
					for idx, ct := range cts {
						g.question.AccumulateVote(idx, ct)
					}
				}
			}
			accepted++
		}
		snap := g.question.Ledger.Snapshot()
		if root, err := codec.DecodeHex32(snap.Root); err == nil {
			roots = append(roots, root)
		}
	}

	var cloudRoot [32]byte
	switch len(roots) {
	case 0:
	case 1:
		cloudRoot = roots[0]
	default:
		cloudRoot = merkle.RootOfRoots(roots)
	}

	return SyncResponse{
		BatchID:            req.BatchID,
		CloudStartPosition: startPosition,
		Accepted:           accepted,
		Rejected:           rejected,
		CloudMerkleRoot:    hex.EncodeToString(cloudRoot[:]),
		ProcessedAt:        now,
	}, nil
}
