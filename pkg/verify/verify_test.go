// Copyright 2025 Trustless Voting System

package verify

import "testing"

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(publicInputs, proof []byte) (bool, error) { return false, nil }

func TestRegistryDispatchesBySystem(t *testing.T) {
	r := NewRegistry(map[System]Verifier{
		"stub":   StubVerifier{},
		"reject": rejectAllVerifier{},
	})

	ok, err := r.Verify("stub", []byte("inputs"), []byte("proof"))
	if err != nil || !ok {
		t.Fatalf("expected stub to accept, got ok=%v err=%v", ok, err)
	}

	ok, err = r.Verify("reject", []byte("inputs"), []byte("proof"))
	if err != nil || ok {
		t.Fatalf("expected reject verifier to reject, got ok=%v err=%v", ok, err)
	}
}

func TestRegistryUnknownSystem(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Verify("missing", nil, nil); err != ErrUnknownSystem {
		t.Fatalf("expected ErrUnknownSystem, got %v", err)
	}
}

func TestParseShapeRejectsEmpty(t *testing.T) {
	if err := ParseShape(nil); err != ErrMalformedProof {
		t.Fatalf("expected ErrMalformedProof, got %v", err)
	}
}

func TestStubVerifierRejectsMalformed(t *testing.T) {
	v := StubVerifier{}
	if ok, err := v.Verify([]byte("x"), nil); ok || err != ErrMalformedProof {
		t.Fatalf("expected rejection with ErrMalformedProof, got ok=%v err=%v", ok, err)
	}
}
