// Copyright 2025 Trustless Voting System
//
// TimestampingClient is the narrow external collaborator the orchestrator
// submits digests to; a concrete implementation talks to whatever service
// is configured (OpenTimestamps-style calendar, a notary HTTP API, ...). The
// orchestrator itself never knows the wire protocol.

package anchor

import (
	"bytes"
	"context"
)

// bitcoinAttestationMarker is the byte sequence §4.8 says to look for inside
// a proof blob to detect Bitcoin attestation. Concrete timestamping clients
// that use a calendar server embed this marker once a Bitcoin block header
// commits the digest; its absence means the proof is still pending upstream
// confirmation.
var bitcoinAttestationMarker = []byte("BTC-ATTESTATION-CONFIRMED")

// TimestampingClient submits a single 32-byte digest for external
// timestamping and polls for its confirmation proof.
type TimestampingClient interface {
	// Submit hands hash to the timestamping service and returns its initial
	// proof blob (which may not yet carry a Bitcoin attestation).
	Submit(ctx context.Context, hash [32]byte) (proofBlob []byte, err error)

	// Poll re-fetches the proof blob for a previously submitted digest.
	Poll(ctx context.Context, hash [32]byte) (proofBlob []byte, err error)
}

// HasBitcoinAttestation reports whether proofBlob carries the confirmation
// marker, per §4.8's "detected by a byte-sequence marker in the proof".
func HasBitcoinAttestation(proofBlob []byte) bool {
	return bytes.Contains(proofBlob, bitcoinAttestationMarker)
}
