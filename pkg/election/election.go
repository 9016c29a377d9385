// Copyright 2025 Trustless Voting System
//
// Election state machine (C8) — ties the threshold ceremony, per-question
// ledgers, and decryption ceremony together behind one legal transition
// graph. Grounded on the teacher's BatchStatusInfo status-message idiom
// (pkg/batch/status.go) for the human-readable Status() response, and on
// its single-struct-plus-mutex shape for the state itself.

package election

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/ceremony"
	"github.com/jasonsutter87/tvs-core/pkg/ledger"
	"github.com/jasonsutter87/tvs-core/pkg/nullifier"
)

// Status is the election's lifecycle position (§4.7).
type Status string

const (
	StatusSetup        Status = "setup"
	StatusDraft         Status = "draft"
	StatusRegistration  Status = "registration"
	StatusVoting        Status = "voting"
	StatusTallying      Status = "tallying"
	StatusComplete      Status = "complete"
)

// legalTransitions enumerates §4.7's transition graph. All other pairs are
// illegal.
var legalTransitions = map[Status]Status{
	StatusSetup:        StatusDraft,
	StatusDraft:        StatusRegistration,
	StatusRegistration: StatusVoting,
	StatusVoting:       StatusTallying,
	StatusTallying:     StatusComplete,
}

// Question is one ballot question within an election, with its own
// append-only ledger. Nullifiers is shared across every question in the
// election (see Election.Nullifiers) so a credential can be consumed only
// once for the whole election, not once per question.
type Question struct {
	ID          uuid.UUID
	DisplayName string
	Candidates  []string
	WriteInLabel string // non-empty marks this a write-in question (counted in cleartext)

	Ledger     *ledger.Ledger
	Nullifiers *nullifier.Set

	accMu       sync.Mutex
	accumulated map[int]ceremony.Ciphertext // candidate index -> homomorphic sum, filled during voting
}

// AccumulateVote folds one candidate's ciphertext into the question's
// running per-candidate sum. Called once per accepted ballot per
// non-write-in candidate, while the election is in StatusVoting — the
// DecryptionCeremony itself is not created until the voting->tallying
// transition, so the sums must be held here in the meantime.
func (q *Question) AccumulateVote(candidateIndex int, ct ceremony.Ciphertext) {
	q.accMu.Lock()
	defer q.accMu.Unlock()
	if q.accumulated == nil {
		q.accumulated = make(map[int]ceremony.Ciphertext)
	}
	existing, ok := q.accumulated[candidateIndex]
	if !ok {
		q.accumulated[candidateIndex] = ct
		return
	}
	q.accumulated[candidateIndex] = ceremony.AddCiphertext(existing, ct)
}

// StatusTransition records one state change with its timestamp (§4.7
// "each transition records a timestamp").
type StatusTransition struct {
	From Status
	To   Status
	At   time.Time
}

// Election is the aggregate root tying together C4 (ceremony), C7
// (per-question ledgers), and C5 (decryption) for one election.
type Election struct {
	mu sync.Mutex

	ID        uuid.UUID
	Title     string
	Threshold int
	Total     int

	status      Status
	history     []StatusTransition
	ceremony    *ceremony.Ceremony
	questions   []*Question
	questionIdx map[uuid.UUID]*Question
	decryption  *ceremony.DecryptionCeremony

	credentialIssuerKey []byte // BLS12-381 G2 public key, verifies Credential.Signature

	checkpoints *ledger.CheckpointStore // nil means question ledgers checkpoint nowhere

	// Nullifiers is the single nullifier set for the whole election (Data
	// Model §3: "per election", not per question). Every question's ledger
	// shares this instance so a credential consumed against one question's
	// ledger is rejected if resubmitted against another.
	Nullifiers *nullifier.Set
}

// SetCheckpointStore registers where each question's ledger persists its
// Merkle checkpoints once voting opens. Nil (the default) matches running
// without USE_DATABASE: checkpoints live only in process memory.
func (e *Election) SetCheckpointStore(store *ledger.CheckpointStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkpoints = store
}

// SetCredentialIssuerKey registers the key against which vote credential
// signatures are verified, when RequireCredentialSignature is enabled. Nil
// (the default) means the election was created without a credential issuer
// on file, so signature checking is skipped regardless of the flag.
func (e *Election) SetCredentialIssuerKey(key []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.credentialIssuerKey = key
}

// CredentialIssuerKey returns the registered credential-issuer public key,
// or nil if none was set.
func (e *Election) CredentialIssuerKey() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.credentialIssuerKey
}

// New creates an election in StatusSetup with a fresh threshold ceremony.
func New(title string, threshold, total int) (*Election, error) {
	id := uuid.New()
	c, err := ceremony.New(id, threshold, total)
	if err != nil {
		return nil, err
	}
	return &Election{
		ID:          id,
		Title:       title,
		Threshold:   threshold,
		Total:       total,
		status:      StatusSetup,
		ceremony:    c,
		questionIdx: make(map[uuid.UUID]*Question),
		Nullifiers:  nullifier.NewSet(),
	}, nil
}

// Ceremony returns the election's threshold ceremony.
func (e *Election) Ceremony() *ceremony.Ceremony { return e.ceremony }

// Status returns the current lifecycle status.
func (e *Election) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// History returns a copy of the recorded transitions.
func (e *Election) History() []StatusTransition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StatusTransition, len(e.history))
	copy(out, e.history)
	return out
}

// AddQuestion registers a ballot question. Legal only before the election
// has entered StatusVoting, since §4.7 instantiates ledgers at the
// registration->voting transition.
func (e *Election) AddQuestion(displayName string, candidates []string, writeInLabel string) (*Question, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusVoting || e.status == StatusTallying || e.status == StatusComplete {
		return nil, ErrIllegalTransition
	}

	q := &Question{
		ID:           uuid.New(),
		DisplayName:  displayName,
		Candidates:   candidates,
		WriteInLabel: writeInLabel,
	}
	e.questions = append(e.questions, q)
	e.questionIdx[q.ID] = q
	return q, nil
}

// Question looks up a registered question.
func (e *Election) Question(id uuid.UUID) (*Question, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.questionIdx[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return q, nil
}

// Questions returns all registered questions in display order.
func (e *Election) Questions() []*Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Question, len(e.questions))
	copy(out, e.questions)
	return out
}

// Advance performs the transition to `to`, enforcing §4.7's legal graph
// plus its two gated preconditions (ceremony finalized before
// setup->draft; decryption completed before tallying->complete).
func (e *Election) Advance(to Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	want, ok := legalTransitions[e.status]
	if !ok || want != to {
		return ErrIllegalTransition
	}

	switch to {
	case StatusDraft:
		if e.ceremony.Status().Phase != ceremony.PhaseFinalized {
			return ErrCeremonyNotFinalized
		}
	case StatusVoting:
		for _, q := range e.questions {
			if q.Nullifiers == nil {
				q.Nullifiers = e.Nullifiers
			}
			if q.Ledger == nil {
				q.Ledger = ledger.New(q.ID, q.Nullifiers, e.checkpoints)
			}
		}
	case StatusTallying:
		e.decryption = ceremony.NewDecryptionCeremony(e.ID, e.Threshold, defaultMaxTally)
		for _, q := range e.questions {
			q.accMu.Lock()
			for idx, ct := range q.accumulated {
				e.decryption.RecordVote(q.ID, idx, ct)
			}
			q.accMu.Unlock()
		}
	case StatusComplete:
		if e.decryption == nil || e.decryption.Status().Phase != ceremony.DecryptionCompleted {
			return ErrDecryptionNotCompleted
		}
	}

	from := e.status
	e.status = to
	e.history = append(e.history, StatusTransition{From: from, To: to, At: time.Now()})
	return nil
}

// Decryption returns the election's decryption ceremony, or nil before the
// tallying transition.
func (e *Election) Decryption() *ceremony.DecryptionCeremony {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decryption
}

// defaultMaxTally bounds the decryption ceremony's baby-step giant-step
// search; elections with larger expected turnout should override this via
// a dedicated configuration hook rather than widening the global default.
const defaultMaxTally = 1 << 20
