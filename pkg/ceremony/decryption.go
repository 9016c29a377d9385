// Copyright 2025 Trustless Voting System
//
// Decryption Ceremony (C5) — threshold combination of per-candidate
// ElGamal partial decryptions into cleartext tallies.
//
// Resolves the open question left by the distilled spec's
// submit_shares(trustee_id, [{index, partial}...]) signature: "index" here
// identifies a candidate within a question, not a trustee share index (the
// trustee's own share index is looked up from their ceremony.Trustee
// record). Each vote's ciphertext is a per-candidate ElGamal pair
// (C1 = r*G, C2 = m*G + r*PK); votes accumulate homomorphically by adding
// ciphertexts candidate-wise. A trustee's "partial" for a candidate is
// their secret share scalar-multiplied into that candidate's accumulated
// C1. Once t trustees have contributed a candidate's partial, Lagrange
// interpolation in the exponent recovers m*G, and a bounded baby-step
// giant-step search recovers the integer m — the final vote count for
// that candidate.
//
// Grounded on the Lagrange/point-arithmetic primitives in curve.go and on
// _examples/wyf-ACCEPT-eth2030/pkg/crypto/threshold.go's share-combination
// shape, re-targeted from a safe-prime multiplicative group to BLS12-381 G1.

package ceremony

import (
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/google/uuid"
)

// DecryptionPhase is the decryption ceremony's state machine position.
type DecryptionPhase string

const (
	DecryptionPending    DecryptionPhase = "pending"
	DecryptionInProgress DecryptionPhase = "in_progress"
	DecryptionCompleted  DecryptionPhase = "completed"
)

// Ciphertext is one ElGamal pair over G1: C1 = r*G, C2 = m*G + r*PK.
type Ciphertext struct {
	C1 bls12381.G1Affine
	C2 bls12381.G1Affine
}

// AddCiphertext homomorphically combines two ciphertexts for the same
// public key: (C1+C1', C2+C2') decrypts to (m+m')*G.
func AddCiphertext(a, b Ciphertext) Ciphertext {
	return Ciphertext{
		C1: AddPoints(a.C1, b.C1),
		C2: AddPoints(a.C2, b.C2),
	}
}

// PartialShare is one trustee's contribution for one candidate:
// their secret share scalar-multiplied into that candidate's accumulated
// C1 (i.e. share_i * C1).
type PartialShare struct {
	CandidateIndex int
	Partial        bls12381.G1Affine
}

// candidateTally accumulates ciphertext votes and collected partials for
// one candidate within one question.
type candidateTally struct {
	accumulated Ciphertext
	haveVote    bool
	partials    map[uint64]bls12381.G1Affine // shareIndex -> partial
	result      *int
}

// DecryptionCeremony coordinates the combination of partial decryptions for
// every question/candidate pair in an election's tally phase.
type DecryptionCeremony struct {
	mu sync.Mutex

	electionID uuid.UUID
	threshold  int
	maxTally   int // BSGS search bound, per question's expected max vote count

	phase DecryptionPhase

	// question -> candidate index -> tally state
	tallies map[uuid.UUID]map[int]*candidateTally

	contributed map[uuid.UUID]bool // trusteeID -> has submitted shares
}

// NewDecryptionCeremony creates a decryption ceremony requiring threshold
// trustee contributions per candidate, with maxTally bounding the BSGS
// search space (the largest plausible vote count for a single candidate).
func NewDecryptionCeremony(electionID uuid.UUID, threshold, maxTally int) *DecryptionCeremony {
	return &DecryptionCeremony{
		electionID:  electionID,
		threshold:   threshold,
		maxTally:    maxTally,
		phase:       DecryptionPending,
		tallies:     make(map[uuid.UUID]map[int]*candidateTally),
		contributed: make(map[uuid.UUID]bool),
	}
}

// RecordVote homomorphically folds one candidate's ciphertext into the
// running accumulator for (questionID, candidateIndex). Called once per
// ballot per question at ingestion time, before the ceremony starts.
func (d *DecryptionCeremony) RecordVote(questionID uuid.UUID, candidateIndex int, ct Ciphertext) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.tallies[questionID]
	if !ok {
		q = make(map[int]*candidateTally)
		d.tallies[questionID] = q
	}
	c, ok := q[candidateIndex]
	if !ok {
		c = &candidateTally{partials: make(map[uint64]bls12381.G1Affine)}
		q[candidateIndex] = c
	}
	if !c.haveVote {
		c.accumulated = ct
		c.haveVote = true
		return
	}
	c.accumulated = AddCiphertext(c.accumulated, ct)
}

// Start transitions pending -> in_progress. Legal only once, and only once
// the election has entered its voting-closed tallying status (enforced by
// the caller; the ceremony itself only tracks its own phase).
func (d *DecryptionCeremony) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != DecryptionPending {
		return ErrAlreadyStarted
	}
	d.phase = DecryptionInProgress
	return nil
}

// SubmitShares records trustee's partial decryption shares, keyed by
// (trustee's ceremony share index, question, candidate index). Once at
// least threshold distinct trustees have contributed a given candidate's
// partial, its tally is combined immediately.
func (d *DecryptionCeremony) SubmitShares(trusteeID uuid.UUID, shareIndex uint64, questionID uuid.UUID, shares []PartialShare) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.phase == DecryptionPending {
		return ErrNotStarted
	}
	if d.phase == DecryptionCompleted {
		return ErrAlreadyCompleted
	}
	if d.contributed[trusteeID] {
		return ErrDuplicateContribution
	}

	q, ok := d.tallies[questionID]
	if !ok {
		return ErrUnknownQuestion
	}

	for _, s := range shares {
		c, ok := q[s.CandidateIndex]
		if !ok {
			return ErrUnknownQuestion
		}
		c.partials[shareIndex] = s.Partial
	}
	d.contributed[trusteeID] = true

	for _, c := range q {
		if c.result != nil || len(c.partials) < d.threshold {
			continue
		}
		tally, err := combinePartials(c, d.maxTally)
		if err != nil {
			return err
		}
		c.result = &tally
	}
	return nil
}

// combinePartials performs Lagrange interpolation in the exponent to
// recover m*G = C2 - sum(lambda_i * partial_i), then a bounded BSGS search
// to recover the integer m.
func combinePartials(c *candidateTally, maxTally int) (int, error) {
	indices := make([]uint64, 0, len(c.partials))
	for idx := range c.partials {
		indices = append(indices, idx)
	}

	var combined bls12381.G1Affine
	first := true
	for _, idx := range indices {
		lambda, err := LagrangeCoefficient(idx, indices)
		if err != nil {
			return 0, err
		}
		term := ScalarMul(c.partials[idx], FrToBigInt(lambda))
		if first {
			combined = term
			first = false
			continue
		}
		combined = AddPoints(combined, term)
	}

	mG := SubPoints(c.accumulated.C2, combined)
	return babyStepGiantStep(mG, 0, maxTally)
}

// babyStepGiantStep recovers m such that m*G == target, searching
// [minBound, maxBound] where maxBound is the ceremony's configured
// maxTally. Vote tallies are small relative to the curve's scalar field,
// so this bounded search terminates quickly in practice.
func babyStepGiantStep(target bls12381.G1Affine, minBound, maxBound int) (int, error) {
	if maxBound <= minBound {
		maxBound = minBound + (1 << 20) // safety ceiling if maxTally is unset
	}
	m := isqrtCeil(maxBound-minBound) + 1

	baby := make(map[string]int, m)
	var acc bls12381.G1Affine
	acc.ScalarMultiplication(&g1Gen, big.NewInt(int64(minBound)))
	step := g1Gen

	cur := acc
	for j := 0; j < m; j++ {
		key := string(cur.Bytes()[:])
		if _, exists := baby[key]; !exists {
			baby[key] = j
		}
		cur = AddPoints(cur, step)
	}

	var giantStep bls12381.G1Affine
	giantStep.ScalarMultiplication(&step, big.NewInt(int64(m)))
	var negGiant bls12381.G1Affine
	negGiant.Neg(&giantStep)

	gamma := target
	for i := 0; i <= m; i++ {
		key := string(gamma.Bytes()[:])
		if j, ok := baby[key]; ok {
			return minBound + i*m + j, nil
		}
		gamma = AddPoints(gamma, negGiant)
	}
	return 0, ErrDiscreteLogNotFound
}

func isqrtCeil(n int) int {
	if n <= 0 {
		return 1
	}
	x := 1
	for x*x < n {
		x++
	}
	return x
}

// Status is the public snapshot of a decryption ceremony.
type DecryptionStatus struct {
	Phase        DecryptionPhase
	Contributors int
	Threshold    int
}

// Status returns the ceremony's current phase and contribution count.
func (d *DecryptionCeremony) Status() DecryptionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DecryptionStatus{
		Phase:        d.phase,
		Contributors: len(d.contributed),
		Threshold:    d.threshold,
	}
}

// Result returns the recovered tally for (questionID, candidateIndex), or
// false if not yet combined.
func (d *DecryptionCeremony) Result(questionID uuid.UUID, candidateIndex int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.tallies[questionID]
	if !ok {
		return 0, false
	}
	c, ok := q[candidateIndex]
	if !ok || c.result == nil {
		return 0, false
	}
	return *c.result, true
}

// Complete marks the ceremony finished once every candidate across every
// question has a recovered result. Returns an error describing the first
// missing result otherwise.
func (d *DecryptionCeremony) Complete() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase == DecryptionCompleted {
		return ErrAlreadyCompleted
	}
	for qID, q := range d.tallies {
		for idx, c := range q {
			if c.result == nil {
				return fmt.Errorf("decryption: question %s candidate %d not yet combined", qID, idx)
			}
		}
	}
	d.phase = DecryptionCompleted
	return nil
}
