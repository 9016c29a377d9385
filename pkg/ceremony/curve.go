// Copyright 2025 Trustless Voting System
//
// BLS12-381 G1 point and scalar-field helpers shared by the threshold and
// decryption ceremonies. Grounded on the teacher's BLS package
// (pkg/crypto/bls/bls.go), which already uses gnark-crypto's bls12-381
// package for point arithmetic (ScalarMultiplication, Jacobian
// addition/conversion) — the same idiom is reused here for Feldman
// commitments and ElGamal-style partial decryptions instead of signatures.

package ceremony

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var g1Gen bls12381.G1Affine

func init() {
	_, _, g1, _ := bls12381.Generators()
	g1Gen = g1
}

// Generator returns the fixed G1 generator used for every scalar
// multiplication below (election public keys, commitments, ciphertexts all
// live on this one group, per §4.3's "fixed group").
func Generator() bls12381.G1Affine { return g1Gen }

// ParsePoint decodes a compressed G1 point and rejects anything off-curve
// or outside the prime-order subgroup — the "(x,y) parses as a valid curve
// point on the fixed group" check in §4.3.
func ParsePoint(b []byte) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if _, err := p.SetBytes(b); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidCurvePoint, err)
	}
	if !p.IsInSubGroup() {
		return p, ErrInvalidCurvePoint
	}
	return p, nil
}

// AddPoints returns the sum of points on G1, via Jacobian accumulation
// (mirrors bls.AggregateSignatures / bls.AggregatePublicKeys).
func AddPoints(points ...bls12381.G1Affine) bls12381.G1Affine {
	var acc bls12381.G1Jac
	if len(points) == 0 {
		var zero bls12381.G1Affine
		return zero
	}
	acc.FromAffine(&points[0])
	for _, p := range points[1:] {
		var jac bls12381.G1Jac
		jac.FromAffine(&p)
		acc.AddAssign(&jac)
	}
	var out bls12381.G1Affine
	out.FromJacobian(&acc)
	return out
}

// SubPoints returns a - b on G1.
func SubPoints(a, b bls12381.G1Affine) bls12381.G1Affine {
	var negB bls12381.G1Affine
	negB.Neg(&b)
	return AddPoints(a, negB)
}

// ScalarMul returns scalar * p.
func ScalarMul(p bls12381.G1Affine, scalar *big.Int) bls12381.G1Affine {
	var out bls12381.G1Affine
	out.ScalarMultiplication(&p, scalar)
	return out
}

// RandomScalar draws a uniformly random scalar in [0, r) where r is the
// BLS12-381 scalar field order.
func RandomScalar() (fr.Element, error) {
	var s fr.Element
	if _, err := s.SetRandom(); err != nil {
		return s, fmt.Errorf("draw random scalar: %w", err)
	}
	return s, nil
}

// EvaluatePolynomial evaluates f(x) = sum(coeffs[i] * x^i) over the scalar
// field, used to derive a trustee's Shamir share at their assigned index.
func EvaluatePolynomial(coeffs []fr.Element, x uint64) fr.Element {
	var result, xElem, xPow fr.Element
	xElem.SetUint64(x)
	xPow.SetOne()

	for _, c := range coeffs {
		var term fr.Element
		term.Mul(&c, &xPow)
		result.Add(&result, &term)
		xPow.Mul(&xPow, &xElem)
	}
	return result
}

// LagrangeCoefficient computes lambda_i(0) for the point set indices,
// evaluating the Lagrange basis polynomial for index i at x=0 — the
// standard combiner for reconstructing f(0) (or, in the exponent, g^{f(0)})
// from t of n shares.
func LagrangeCoefficient(index uint64, indices []uint64) (fr.Element, error) {
	var num, den, result fr.Element
	result.SetOne()

	var xi fr.Element
	xi.SetUint64(index)

	for _, j := range indices {
		if j == index {
			continue
		}
		var xj fr.Element
		xj.SetUint64(j)

		// numerator term: (0 - x_j) = -x_j
		num.Neg(&xj)
		// denominator term: (x_i - x_j)
		den.Sub(&xi, &xj)
		if den.IsZero() {
			return result, fmt.Errorf("ceremony: duplicate share index %d", j)
		}
		var denInv fr.Element
		denInv.Inverse(&den)

		var term fr.Element
		term.Mul(&num, &denInv)
		result.Mul(&result, &term)
	}
	return result, nil
}

// FrToBigInt converts a scalar-field element to a big.Int for use with
// ScalarMul (gnark-crypto's ScalarMultiplication takes *big.Int, not
// *fr.Element).
func FrToBigInt(e fr.Element) *big.Int {
	var out big.Int
	e.BigInt(&out)
	return &out
}
