// Copyright 2025 Trustless Voting System
//
// EVM anchor path, used in place of the external timestamping client when
// USE_BITCOIN_ANCHORING=false and an EVM anchor contract is configured.
// Grounded directly on the validator's Keccak256/Keccak256Hash/ComputeMerkleRoot
// helpers (pkg/anchor/anchor_manager.go), which wrap go-ethereum's
// crypto.Keccak256 for Solidity-compatible hashing.

package anchor

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Keccak256 computes the Keccak256 hash of data, matching Solidity's
// keccak256 builtin.
func Keccak256(data []byte) [32]byte {
	hash := crypto.Keccak256(data)
	var result [32]byte
	copy(result[:], hash)
	return result
}

// Keccak256Hash is a convenience wrapper returning a common.Hash.
func Keccak256Hash(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

// anchorSelector is keccak256("anchorDigest(bytes32,bytes32)")[:4], the
// 4-byte function selector for the anchor contract's entrypoint.
var anchorSelector = func() [4]byte {
	sum := Keccak256([]byte("anchorDigest(bytes32,bytes32)"))
	var sel [4]byte
	copy(sel[:], sum[:4])
	return sel
}()

// BuildAnchorCallData ABI-encodes a call to anchorDigest(bytes32 electionId,
// bytes32 dataHash): 4-byte selector followed by the two 32-byte arguments,
// electionID left-padded into its low 16 bytes per Solidity's bytes32
// right-alignment of shorter fixed types.
func BuildAnchorCallData(electionID uuid.UUID, dataHash [32]byte) []byte {
	out := make([]byte, 0, 4+32+32)
	out = append(out, anchorSelector[:]...)

	var electionArg [32]byte
	copy(electionArg[16:], electionID[:])
	out = append(out, electionArg[:]...)
	out = append(out, dataHash[:]...)
	return out
}

// encodeUint64BigEndian is used when a chain adapter needs the block height
// folded into a commitment alongside a digest (mirrors the validator's
// ComputeMerkleRoot concatenate-then-hash style).
func encodeUint64BigEndian(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// ComputeChainCommitment hashes a block height together with dataHash,
// matching the validator's ComputeMerkleRoot concatenation style
// (keccak256(abi.encodePacked(...))) generalized to two fields instead of
// three.
func ComputeChainCommitment(blockHeight uint64, dataHash [32]byte) [32]byte {
	data := make([]byte, 0, 8+32)
	data = append(data, encodeUint64BigEndian(blockHeight)...)
	data = append(data, dataHash[:]...)
	return Keccak256(data)
}
