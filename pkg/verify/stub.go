// Copyright 2025 Trustless Voting System

package verify

import "errors"

var ErrMalformedProof = errors.New("verify: proof blob is empty or malformed")

// ParseShape performs the cheap, algebra-free precondition check §4.9 calls
// "ZK proof shape parses": the blob is non-empty. No size bound is applied.
// It never judges validity, only whether the bytes are worth handing to a
// registered Verifier.
func ParseShape(proof []byte) error {
	if len(proof) == 0 {
		return ErrMalformedProof
	}
	return nil
}

// StubVerifier accepts any proof that passes ParseShape. It exists for
// development and testing when no concrete proof system is wired yet; it
// must never be registered under a System name a production deployment
// actually relies on.
type StubVerifier struct{}

func (StubVerifier) Verify(publicInputs, proof []byte) (bool, error) {
	if err := ParseShape(proof); err != nil {
		return false, err
	}
	return true, nil
}
