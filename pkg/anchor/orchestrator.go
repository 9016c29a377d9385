// Copyright 2025 Trustless Voting System
//
// Orchestrator submits election start/close digests to an external
// timestamping service with genuine exponential backoff (§4.8: "exponential
// backoff, maximum three attempts per submission"). This intentionally
// departs from the validator's MarkBatchFailed requeue pattern
// (pkg/anchor/scheduler.go), which requeues a failed batch after a single
// fixed RetryDelay rather than doubling it per attempt.

package anchor

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

const maxSubmitAttempts = 3

// Config tunes the orchestrator's retry timing. BaseDelay is the first
// retry's wait; it doubles on each subsequent attempt.
type Config struct {
	BaseDelay time.Duration
}

// DefaultConfig mirrors the validator's anchor defaults (pkg/anchor/anchor_manager.go
// AnchorBatchConfig) in spirit: small bounded backoff, few attempts.
func DefaultConfig() Config {
	return Config{BaseDelay: 2 * time.Second}
}

// Orchestrator is the Anchor orchestrator (C9).
type Orchestrator struct {
	client TimestampingClient
	store  Store
	cfg    Config
	logger *log.Logger

	// sleep is overridable in tests to avoid real waiting; it honors ctx
	// cancellation the same way the production path does.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator backed by client. store may be nil
// (USE_DATABASE=false), matching ledger.CheckpointStore's contract.
func New(client TimestampingClient, store Store, cfg Config) *Orchestrator {
	return &Orchestrator{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: log.New(os.Stderr, "[Anchor] ", log.LstdFlags),
		sleep:  ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitStart anchors payload/hash as a start record for electionID.
func (o *Orchestrator) SubmitStart(ctx context.Context, electionID uuid.UUID, hash [32]byte, payload []byte) *Record {
	return o.submit(ctx, KindStart, electionID, hash, payload)
}

// SubmitClose anchors payload/hash as a close record for electionID.
func (o *Orchestrator) SubmitClose(ctx context.Context, electionID uuid.UUID, hash [32]byte, payload []byte) *Record {
	return o.submit(ctx, KindClose, electionID, hash, payload)
}

// submit persists a pending record immediately, then attempts external
// submission up to maxSubmitAttempts times with doubling backoff. Failure is
// recorded on the record and returned to the caller but never propagated as
// an error that would unwind the election transition that triggered it
// (§4.8, §8 External error kind).
func (o *Orchestrator) submit(ctx context.Context, kind Kind, electionID uuid.UUID, hash [32]byte, payload []byte) *Record {
	rec := &Record{
		ID:         uuid.New(),
		ElectionID: electionID,
		Kind:       kind,
		DataHash:   hash,
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
	o.persist(rec)

	delay := o.cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		proof, err := o.client.Submit(ctx, hash)
		if err == nil {
			rec.ProofBlob = proof
			rec.Status = StatusBroadcast
			rec.BroadcastAt = time.Now()
			if HasBitcoinAttestation(proof) {
				rec.Status = StatusConfirmed
				rec.ConfirmedAt = time.Now()
			}
			o.persist(rec)
			return rec
		}
		lastErr = err
		o.logger.Printf("submit attempt %d/%d for election %s failed: %v", attempt, maxSubmitAttempts, electionID, err)
		if attempt == maxSubmitAttempts {
			break
		}
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			lastErr = sleepErr
			break
		}
		delay *= 2
	}

	rec.Status = StatusFailed
	o.logger.Printf("submission exhausted for election %s: %v", electionID, lastErr)
	o.persist(rec)
	return rec
}

// PollAttestation re-fetches rec's proof blob and promotes it to Confirmed
// once the Bitcoin attestation marker appears. Safe to call repeatedly by an
// external scheduler; a record not in broadcast status (pending, already
// confirmed, or failed) is a no-op.
func (o *Orchestrator) PollAttestation(ctx context.Context, rec *Record) error {
	if rec.Status != StatusBroadcast {
		return nil
	}
	proof, err := o.client.Poll(ctx, rec.DataHash)
	if err != nil {
		return err
	}
	rec.ProofBlob = proof
	if HasBitcoinAttestation(proof) {
		rec.Status = StatusConfirmed
		rec.ConfirmedAt = time.Now()
	}
	o.persist(rec)
	return nil
}

func (o *Orchestrator) persist(rec *Record) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(rec); err != nil {
		o.logger.Printf("persist record %s: %v", rec.ID, err)
	}
}
