// Copyright 2025 Trustless Voting System
//
// Thin re-export of the ciphertext-vector wire codec (pkg/ceremony/wire.go),
// kept here so existing handler call sites don't need a package-qualified
// name. The codec itself lives in pkg/ceremony so pkg/edgesync can share it
// without importing pkg/ingest.

package ingest

import "github.com/jasonsutter87/tvs-core/pkg/ceremony"

// EncodeCiphertextVector serializes one ciphertext per candidate as the
// VoteEntry's encrypted payload.
func EncodeCiphertextVector(cts []ceremony.Ciphertext) ([]byte, error) {
	return ceremony.EncodeCiphertextVector(cts)
}

// DecodeCiphertextVector parses an encrypted payload into exactly
// wantCandidates ciphertexts.
func DecodeCiphertextVector(payload []byte, wantCandidates int) ([]ceremony.Ciphertext, error) {
	return ceremony.DecodeCiphertextVector(payload, wantCandidates)
}
