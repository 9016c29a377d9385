// Copyright 2025 Trustless Voting System

package ceremony

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/google/uuid"
)

// trusteePolynomial draws a random degree-(t-1) polynomial and returns both
// its scalar coefficients (kept private by the trustee) and the
// corresponding G1 commitment vector (published to the ceremony).
func trusteePolynomial(t *testing.T, threshold int) ([]fr.Element, [][]byte) {
	t.Helper()
	coeffs := make([]fr.Element, threshold)
	commitments := make([][]byte, threshold)
	for i := 0; i < threshold; i++ {
		c, err := RandomScalar()
		if err != nil {
			t.Fatalf("random scalar: %v", err)
		}
		coeffs[i] = c
		point := ScalarMul(Generator(), FrToBigInt(c))
		b := point.Bytes()
		commitments[i] = b[:]
	}
	return coeffs, commitments
}

func TestCeremonyMinimalRun(t *testing.T) {
	const threshold, total = 2, 3
	c, err := New(uuid.New(), threshold, total)
	if err != nil {
		t.Fatalf("new ceremony: %v", err)
	}

	trustees := make([]*Trustee, total)
	for i := 0; i < total; i++ {
		tr, err := c.RegisterTrustee("trustee", nil)
		if err != nil {
			t.Fatalf("register trustee %d: %v", i, err)
		}
		trustees[i] = tr
	}

	if got := c.Status().Phase; got != PhaseCommitment {
		t.Fatalf("expected commitment phase once roster is full, got %s", got)
	}

	for i, tr := range trustees {
		_, commitments := trusteePolynomial(t, threshold)
		hash := hashCommitments(commitments)
		if err := c.SubmitCommitment(tr.ID, hash, commitments); err != nil {
			t.Fatalf("submit commitment %d: %v", i, err)
		}
	}

	status := c.Status()
	if status.Phase != PhaseFinalized {
		t.Fatalf("expected finalized after all %d trustees committed, got %s", total, status.Phase)
	}

	pub, err := c.PublicKey()
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if len(pub) == 0 {
		t.Fatal("expected a non-empty public key hex string")
	}
}

func TestSubmitCommitmentWrongSize(t *testing.T) {
	c, _ := New(uuid.New(), 2, 2)
	tr1, _ := c.RegisterTrustee("a", nil)
	_, _ = c.RegisterTrustee("b", nil)

	_, commitments := trusteePolynomial(t, 3) // wrong length
	hash := hashCommitments(commitments)
	err := c.SubmitCommitment(tr1.ID, hash, commitments)
	if err != ErrWrongCommitmentSize {
		t.Fatalf("expected ErrWrongCommitmentSize, got %v", err)
	}
}

func TestSubmitCommitmentHashMismatch(t *testing.T) {
	c, _ := New(uuid.New(), 1, 1)
	tr, _ := c.RegisterTrustee("a", nil)

	_, commitments := trusteePolynomial(t, 1)
	err := c.SubmitCommitment(tr.ID, "deadbeef", commitments)
	if err != ErrCommitmentHashMismatch {
		t.Fatalf("expected ErrCommitmentHashMismatch, got %v", err)
	}
}

func TestSubmitCommitmentAlreadyCommitted(t *testing.T) {
	c, _ := New(uuid.New(), 1, 2)
	tr1, _ := c.RegisterTrustee("a", nil)
	_, _ = c.RegisterTrustee("b", nil)

	_, commitments := trusteePolynomial(t, 1)
	hash := hashCommitments(commitments)
	if err := c.SubmitCommitment(tr1.ID, hash, commitments); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := c.SubmitCommitment(tr1.ID, hash, commitments); err != ErrAlreadyCommitted {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}
}

func TestRegisterTrusteeCapacityExceeded(t *testing.T) {
	c, _ := New(uuid.New(), 1, 1)
	if _, err := c.RegisterTrustee("a", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.RegisterTrustee("b", nil); err != ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestNewInvalidThreshold(t *testing.T) {
	if _, err := New(uuid.New(), 0, 3); err != ErrInvalidThreshold {
		t.Fatalf("expected ErrInvalidThreshold for t=0, got %v", err)
	}
	if _, err := New(uuid.New(), 4, 3); err != ErrInvalidThreshold {
		t.Fatalf("expected ErrInvalidThreshold for t>n, got %v", err)
	}
}

func TestLagrangeCoefficientDuplicateIndex(t *testing.T) {
	if _, err := LagrangeCoefficient(1, []uint64{1, 1, 2}); err == nil {
		t.Fatal("expected error for duplicate index set")
	}
}

func TestEvaluatePolynomialConstantTerm(t *testing.T) {
	var a0 fr.Element
	a0.SetUint64(42)
	got := EvaluatePolynomial([]fr.Element{a0}, 7)
	if !got.Equal(&a0) {
		t.Fatalf("constant polynomial evaluated at x=7 should equal a0")
	}
}

func TestScalarMulIdentityAtZero(t *testing.T) {
	zero := big.NewInt(0)
	p := ScalarMul(Generator(), zero)
	if !p.IsInfinity() {
		t.Fatal("0 * G should be the point at infinity")
	}
}
