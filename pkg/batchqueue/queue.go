// Copyright 2025 Trustless Voting System
//
// Batch Queue (C6) — coalesces concurrent vote submissions into group
// appends per ledger.
//
// Grounded on the teacher's Collector/Scheduler pair
// (pkg/batch/collector.go, pkg/batch/scheduler.go): an in-memory pending
// set guarded by one mutex, a background ticker loop that flushes on a
// fixed interval, and an immediate flush trigger once a size threshold is
// crossed — the same "timeout OR size limit, whichever first" rule the
// scheduler's run loop implements, just with milliseconds instead of
// minutes and per-ledger grouping instead of per-validator.

package batchqueue

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/merkle"
)

// ErrBusy is returned by Enqueue when the blob writer's backlog is at
// capacity (§4.9 Backpressure).
var ErrBusy = errors.New("batchqueue: blob writer backlog full")

// AppendResult is one entry's outcome within a flushed group. Err is set
// per-entry (e.g. to a double-spend rejection) rather than failing the
// whole group: the ledger's nullifier-consume-then-tree-extend invariant
// (§4.6) is enforced per leaf, not per batch, so one entry's rejection
// must never block its batch-mates from being appended.
type AppendResult struct {
	Position uint64
	Proof    *merkle.InclusionProof
	Err      error
}

// LedgerHandle is the append surface a queued group is flushed against.
// pkg/ledger.Ledger implements this. nullifiers[i] corresponds to
// leaves[i]; results are returned in the same order.
type LedgerHandle interface {
	AppendBatch(nullifiers []string, leaves [][32]byte) ([]AppendResult, error)
}

// BlobEntry is one ledger append buffered for write-behind persistence.
type BlobEntry struct {
	Leaf       [32]byte
	QuestionID uuid.UUID
	ElectionID uuid.UUID
	Position   uint64
}

// BlobWriter accepts a flushed group for asynchronous, best-effort
// persistence. Enqueue returns false when the writer's bounded backlog is
// full, which the queue surfaces to callers as ErrBusy.
type BlobWriter interface {
	Enqueue(entries []BlobEntry) bool
	Backlogged() bool
}

// VoteResult is what a caller's future resolves to on a successful flush.
type VoteResult struct {
	Position uint64
	Root     [32]byte
	Proof    *merkle.InclusionProof
}

// Future is resolved once the entry's group has been flushed.
type Future struct {
	ch chan futureOutcome
}

type futureOutcome struct {
	result VoteResult
	err    error
}

// Await blocks until the entry's group flushes and returns its outcome.
func (f *Future) Await(ctx context.Context) (VoteResult, error) {
	select {
	case o := <-f.ch:
		return o.result, o.err
	case <-ctx.Done():
		return VoteResult{}, ctx.Err()
	}
}

func newFuture() *Future { return &Future{ch: make(chan futureOutcome, 1)} }

func (f *Future) resolve(result VoteResult, err error) {
	f.ch <- futureOutcome{result: result, err: err}
}

// Entry is one vote leaf awaiting a group append.
type Entry struct {
	Leaf         [32]byte
	NullifierHex string
	QuestionID   uuid.UUID
	ElectionID   uuid.UUID
	Ledger       LedgerHandle
}

type pendingItem struct {
	entry  Entry
	future *Future
}

// Config holds the three env-overridable knobs from §4.5.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	Enabled       bool
}

// DefaultConfig matches §4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 100 * time.Millisecond,
		Enabled:       true,
	}
}

// Stats is returned by Queue.Stats().
type Stats struct {
	TotalBatches      uint64
	TotalVotes        uint64
	AvgBatchSize      float64
	LastFlushLatency  time.Duration
	QueueDepth        int
}

// Queue is a single-threaded (one flush-goroutine) coalescing queue. All
// pending-state mutation happens under mu; the flush goroutine is the only
// reader/writer of pending between ticks, matching the teacher's
// single-flusher-per-election scheduling model (§4.8).
type Queue struct {
	mu      sync.Mutex
	pending []pendingItem

	cfg        Config
	blobWriter BlobWriter
	logger     *log.Logger

	stopCh chan struct{}
	doneCh chan struct{}
	nudge  chan struct{}

	totalBatches uint64
	totalVotes   uint64
	lastLatency  time.Duration
}

// New creates a queue. blobWriter may be nil, in which case flushed groups
// are not buffered for blob persistence (acceptable for USE_DATABASE=false
// development mode per §7).
func New(cfg Config, blobWriter BlobWriter) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Queue{
		cfg:        cfg,
		blobWriter: blobWriter,
		logger:     log.New(log.Writer(), "[BatchQueue] ", log.LstdFlags),
		nudge:      make(chan struct{}, 1),
	}
}

// Start launches the background flush loop. No-op if batching is disabled.
func (q *Queue) Start(ctx context.Context) {
	if !q.cfg.Enabled {
		return
	}
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	go q.run(ctx)
}

// Stop halts the flush loop, flushing any remaining pending entries first.
func (q *Queue) Stop() {
	if !q.cfg.Enabled || q.stopCh == nil {
		return
	}
	close(q.stopCh)
	<-q.doneCh
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.doneCh)
	ticker := time.NewTicker(q.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.flush()
			return
		case <-q.stopCh:
			q.flush()
			return
		case <-q.nudge:
			q.flush()
		case <-ticker.C:
			q.flush()
		}
	}
}

// Enqueue adds entry to the pending set and returns a future resolved once
// the entry's group is flushed. When batching is disabled the entry is
// flushed synchronously and the returned future is already resolved.
func (q *Queue) Enqueue(entry Entry) (*Future, error) {
	if q.blobWriter != nil && q.blobWriter.Backlogged() {
		return nil, ErrBusy
	}

	if !q.cfg.Enabled {
		fut := newFuture()
		q.flushGroup(LedgerHandle(entry.Ledger), []pendingItem{{entry: entry, future: fut}})
		return fut, nil
	}

	q.mu.Lock()
	fut := newFuture()
	q.pending = append(q.pending, pendingItem{entry: entry, future: fut})
	size := len(q.pending)
	q.mu.Unlock()

	if size >= q.cfg.BatchSize {
		select {
		case q.nudge <- struct{}{}:
		default:
		}
	}
	return fut, nil
}

// flush drains all pending entries, grouped by ledger handle, and flushes
// each group independently (§4.5: "groups queued entries by ledger
// handle").
func (q *Queue) flush() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	groups := make(map[LedgerHandle][]pendingItem)
	order := make([]LedgerHandle, 0)
	for _, item := range batch {
		key := item.entry.Ledger
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}

	for _, key := range order {
		q.flushGroup(key, groups[key])
	}
}

func (q *Queue) flushGroup(ledger LedgerHandle, items []pendingItem) {
	start := time.Now()

	leaves := make([][32]byte, len(items))
	nullifiers := make([]string, len(items))
	for i, item := range items {
		leaves[i] = item.entry.Leaf
		nullifiers[i] = item.entry.NullifierHex
	}

	results, err := ledger.AppendBatch(nullifiers, leaves)
	latency := time.Since(start)

	if err != nil {
		for _, item := range items {
			item.future.resolve(VoteResult{}, err)
		}
		q.logger.Printf("flush group of %d failed: %v", len(items), err)
		return
	}

	blobEntries := make([]BlobEntry, 0, len(items))
	for i, item := range items {
		r := results[i]
		if r.Err != nil {
			item.future.resolve(VoteResult{}, r.Err)
			continue
		}
		var root [32]byte
		if r.Proof != nil {
			if decoded, decodeErr := decodeRootHex(r.Proof.MerkleRoot); decodeErr == nil {
				root = decoded
			}
		}
		item.future.resolve(VoteResult{Position: r.Position, Root: root, Proof: r.Proof}, nil)

		blobEntries = append(blobEntries, BlobEntry{
			Leaf:       item.entry.Leaf,
			QuestionID: item.entry.QuestionID,
			ElectionID: item.entry.ElectionID,
			Position:   r.Position,
		})
	}

	if q.blobWriter != nil {
		if !q.blobWriter.Enqueue(blobEntries) {
			q.logger.Printf("blob writer backlog full, dropping write-behind buffer for %d entries", len(blobEntries))
		}
	}

	q.mu.Lock()
	q.totalBatches++
	q.totalVotes += uint64(len(items))
	q.lastLatency = latency
	q.mu.Unlock()
}

func decodeRootHex(hexStr string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// Stats returns a snapshot of queue throughput counters (§4.5 stats()).
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	avg := 0.0
	if q.totalBatches > 0 {
		avg = float64(q.totalVotes) / float64(q.totalBatches)
	}
	return Stats{
		TotalBatches:     q.totalBatches,
		TotalVotes:       q.totalVotes,
		AvgBatchSize:     avg,
		LastFlushLatency: q.lastLatency,
		QueueDepth:       len(q.pending),
	}
}
