// Copyright 2025 Trustless Voting System
//
// Threshold Ceremony (C4) — Feldman VSS commitment collection and
// finalization into a joint election public key.
//
// Grounded on:
//   - pkg/crypto/bls/bls.go for the BLS12-381 group and Jacobian point
//     aggregation idiom (AggregateSignatures / AggregatePublicKeys).
//   - _examples/wyf-ACCEPT-eth2030/pkg/crypto/threshold.go for the
//     Feldman-VSS commitment-vector shape (one curve point per polynomial
//     coefficient) and the "public key = constant-term commitment" identity.
//   - pkg/commitment/commitment.go for canonical-hash verification of a
//     submitted vector against its claimed hash.

package ceremony

import (
	"encoding/hex"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/codec"
)

// Phase is the threshold ceremony's state machine position (§4.3).
type Phase string

const (
	PhaseCreated     Phase = "created"
	PhaseRegistration Phase = "registration"
	PhaseCommitment  Phase = "commitment"
	PhaseFinalized   Phase = "finalized"
)

// TrusteeStatus tracks an individual trustee's progress through the
// ceremony (§3 Data Model: Trustee.status).
type TrusteeStatus string

const (
	TrusteeRegistered    TrusteeStatus = "registered"
	TrusteeCommitted     TrusteeStatus = "committed"
	TrusteeShareReceived TrusteeStatus = "share_received"
)

// Trustee is one participant in the ceremony.
type Trustee struct {
	ID              uuid.UUID
	DisplayName     string
	ShareIndex      uint64 // 1-based, assigned in registration order
	EnrollmentKey   []byte
	Status          TrusteeStatus
	CommitmentHash  string   // hex SHA-256, set once committed
	Commitments     [][]byte // t compressed G1 points, set once committed
}

// Status is the public snapshot returned by status().
type Status struct {
	Phase         Phase
	Registered    int
	Committed     int
	RequiredCount int
}

// Ceremony coordinates Feldman VSS commitment collection for one election's
// trustee set. All mutating operations take ceremony.mu, per §4.3
// Concurrency.
type Ceremony struct {
	mu sync.Mutex

	electionID uuid.UUID
	threshold  int // t
	total      int // n

	phase    Phase
	trustees []*Trustee // in registration order; ShareIndex == idx+1

	publicKey []byte // compressed G1 point, set once finalized
}

// New creates a ceremony for electionID with parameters (t, n), 1 <= t <= n.
func New(electionID uuid.UUID, threshold, total int) (*Ceremony, error) {
	if threshold < 1 || threshold > total {
		return nil, ErrInvalidThreshold
	}
	return &Ceremony{
		electionID: electionID,
		threshold:  threshold,
		total:      total,
		phase:      PhaseRegistration,
	}, nil
}

// RegisterTrustee admits a new trustee, assigning ShareIndex = count+1.
// Legal only in PhaseRegistration; transitions to PhaseCommitment once the
// roster is full.
func (c *Ceremony) RegisterTrustee(displayName string, enrollmentPubKey []byte) (*Trustee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseRegistration {
		return nil, ErrWrongPhase
	}
	if len(c.trustees) >= c.total {
		return nil, ErrCapacityExceeded
	}

	t := &Trustee{
		ID:            uuid.New(),
		DisplayName:   displayName,
		ShareIndex:    uint64(len(c.trustees) + 1),
		EnrollmentKey: append([]byte(nil), enrollmentPubKey...),
		Status:        TrusteeRegistered,
	}
	c.trustees = append(c.trustees, t)

	if len(c.trustees) == c.total {
		c.phase = PhaseCommitment
	}
	return t, nil
}

// findTrusteeLocked must be called with c.mu held.
func (c *Ceremony) findTrusteeLocked(id uuid.UUID) *Trustee {
	for _, t := range c.trustees {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// SubmitCommitment records trustee id's Feldman commitment vector
// (§4.3 submit_commitment). commitments are compressed G1 points;
// commitmentHashHex is the hex SHA-256 the caller claims matches the
// canonical serialization of the vector.
func (c *Ceremony) SubmitCommitment(id uuid.UUID, commitmentHashHex string, commitments [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseCommitment {
		if c.phase == PhaseFinalized {
			return ErrFinalized
		}
		return ErrWrongPhase
	}

	trustee := c.findTrusteeLocked(id)
	if trustee == nil {
		return ErrTrusteeNotFound
	}
	if trustee.Status == TrusteeCommitted || trustee.Status == TrusteeShareReceived {
		return ErrAlreadyCommitted
	}
	if len(commitments) != c.threshold {
		return ErrWrongCommitmentSize
	}

	for _, pt := range commitments {
		if _, err := ParsePoint(pt); err != nil {
			return err
		}
	}

	wantHash := hashCommitments(commitments)
	if wantHash != commitmentHashHex {
		return ErrCommitmentHashMismatch
	}

	trustee.CommitmentHash = commitmentHashHex
	trustee.Commitments = commitments
	trustee.Status = TrusteeCommitted

	if c.allCommittedLocked() {
		if err := c.finalizeLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Ceremony) allCommittedLocked() bool {
	if len(c.trustees) != c.total {
		return false
	}
	for _, t := range c.trustees {
		if t.Status != TrusteeCommitted {
			return false
		}
	}
	return true
}

// finalizeLocked sums the constant-term commitment (index 0 of each
// trustee's vector) across all trustees to derive the joint election
// public key, per §4.3: "combines commitments to derive the election
// public key by summing the constant-term commitment points across all
// trustees".
func (c *Ceremony) finalizeLocked() error {
	constantTerms := make([][]byte, 0, len(c.trustees))
	for _, t := range c.trustees {
		constantTerms = append(constantTerms, t.Commitments[0])
	}

	sum, err := sumCompressedPoints(constantTerms)
	if err != nil {
		return err
	}
	c.publicKey = sum
	c.phase = PhaseFinalized
	return nil
}

func sumCompressedPoints(compressed [][]byte) ([]byte, error) {
	pts := make([]bls12381.G1Affine, 0, len(compressed))
	for _, b := range compressed {
		p, err := ParsePoint(b)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	sum := AddPoints(pts...)
	out := sum.Bytes()
	return out[:], nil
}

// hashCommitments computes the hex SHA-256 over the concatenated compressed
// points, in vector order — the canonical serialization referenced by
// §4.3's commitment_hash check.
func hashCommitments(commitments [][]byte) string {
	parts := make([][]byte, len(commitments))
	copy(parts, commitments)
	return codec.Hash256Hex(parts...)
}

// Status returns the ceremony's public snapshot.
func (c *Ceremony) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	committed := 0
	for _, t := range c.trustees {
		if t.Status == TrusteeCommitted || t.Status == TrusteeShareReceived {
			committed++
		}
	}
	return Status{
		Phase:         c.phase,
		Registered:    len(c.trustees),
		Committed:     committed,
		RequiredCount: c.total,
	}
}

// PublicKey returns the finalized election public key, hex-encoded.
func (c *Ceremony) PublicKey() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseFinalized {
		return "", ErrPublicKeyNotReady
	}
	return hex.EncodeToString(c.publicKey), nil
}

// PublicKeyBytes returns the raw finalized public key bytes.
func (c *Ceremony) PublicKeyBytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseFinalized {
		return nil, ErrPublicKeyNotReady
	}
	out := make([]byte, len(c.publicKey))
	copy(out, c.publicKey)
	return out, nil
}

// Threshold and Total expose the fixed ceremony parameters.
func (c *Ceremony) Threshold() int { return c.threshold }
func (c *Ceremony) Total() int     { return c.total }

// ElectionID returns the election this ceremony belongs to.
func (c *Ceremony) ElectionID() uuid.UUID { return c.electionID }
