// Copyright 2025 Trustless Voting System
//
// EVMClient implements TimestampingClient by sending the digest straight to
// an anchor contract on an EVM chain, used when USE_BITCOIN_ANCHORING=false.
// Built on the validator's ethereum.Client for dialing and nonce/gas-price
// lookups (GetNonce, GetGasPrice), generalized from that client's arbitrary
// ABI-call surface (SendContractTransaction, CreateTransactor) to the single
// anchorDigest(bytes32) call this orchestrator needs. ethereum.Client's
// SendContractTransaction* helpers block until the receipt is in, which
// doesn't fit here: the orchestrator's Status state machine polls for
// confirmation on its own schedule, so Submit builds and sends the
// transaction directly and returns immediately.

package anchor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jasonsutter87/tvs-core/pkg/ethereum"
)

// anchorSelector1 is keccak256("anchorDigest(bytes32)")[:4], the selector
// for the single-argument variant EVMClient calls. BuildAnchorCallData's
// two-argument selector is for a richer election-aware contract; this one
// only has the raw digest to work with, per TimestampingClient.Submit's
// signature.
var anchorSelector1 = func() [4]byte {
	sum := Keccak256([]byte("anchorDigest(bytes32)"))
	var sel [4]byte
	copy(sel[:], sum[:4])
	return sel
}()

func buildDigestCallData(hash [32]byte) []byte {
	out := make([]byte, 0, 4+32)
	out = append(out, anchorSelector1[:]...)
	out = append(out, hash[:]...)
	return out
}

// EVMClient submits anchor digests as transactions to a contract address on
// an EVM chain and polls for transaction receipts. It tracks each digest's
// transaction hash in-process so Poll can be keyed the same way the
// Bitcoin-calendar TimestampingClient is: by digest, not by tx hash.
type EVMClient struct {
	eth      *ethereum.Client
	chainID  *big.Int
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address

	mu      sync.Mutex
	txByDig map[[32]byte]common.Hash
}

// NewEVMClient dials rpcURL and prepares a signer from privateKeyHex for
// submitting to contractAddr.
func NewEVMClient(rpcURL string, chainID int64, contractAddr string, privateKeyHex string) (*EVMClient, error) {
	client, err := ethereum.NewClient(rpcURL, chainID)
	if err != nil {
		return nil, fmt.Errorf("anchor: dial ethereum rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("anchor: parse private key: %w", err)
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("anchor: derive public key from private key")
	}
	return &EVMClient{
		eth:      client,
		chainID:  big.NewInt(chainID),
		contract: common.HexToAddress(contractAddr),
		key:      key,
		from:     crypto.PubkeyToAddress(*pub),
		txByDig:  make(map[[32]byte]common.Hash),
	}, nil
}

// Submit sends a transaction calling anchorDigest(hash) and returns the raw
// transaction hash as the proof blob (still pending, no attestation marker).
func (c *EVMClient) Submit(ctx context.Context, hash [32]byte) ([]byte, error) {
	nonce, err := c.eth.GetNonce(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("anchor: pending nonce: %w", err)
	}
	gasPrice, err := c.eth.GetGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("anchor: suggest gas price: %w", err)
	}
	callData := buildDigestCallData(hash)
	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), 150_000, gasPrice, callData)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("anchor: sign transaction: %w", err)
	}
	if err := c.eth.GetClient().SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("anchor: send transaction: %w", err)
	}

	c.mu.Lock()
	c.txByDig[hash] = signed.Hash()
	c.mu.Unlock()

	return []byte(signed.Hash().Hex()), nil
}

// Poll checks the receipt for the transaction previously submitted for
// hash and appends HasBitcoinAttestation's confirmation marker once the
// transaction is mined successfully, so an EVM confirmation flows through
// the orchestrator's existing Status machinery unchanged.
func (c *EVMClient) Poll(ctx context.Context, hash [32]byte) ([]byte, error) {
	c.mu.Lock()
	txHash, ok := c.txByDig[hash]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("anchor: no transaction submitted for this digest")
	}

	receipt, err := c.eth.GetClient().TransactionReceipt(ctx, txHash)
	if err != nil {
		return []byte(txHash.Hex()), nil // not yet mined; still pending, not an error
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("anchor: transaction %s reverted", txHash.Hex())
	}
	return append([]byte(txHash.Hex()+" "), bitcoinAttestationMarker...), nil
}
