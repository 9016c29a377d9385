// Copyright 2025 Trustless Voting System
//
// Election lifecycle handlers (POST /api/elections, GET /api/elections/{id},
// PATCH /api/elections/{id}/status), grounded on pkg/server/ledger_handlers.go's
// handler shape (struct of collaborators + logger, one HandleX method per
// route, Content-Type set first, writeJSONError on failure).

package ingest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/anchor"
	"github.com/jasonsutter87/tvs-core/pkg/codec"
	"github.com/jasonsutter87/tvs-core/pkg/election"
)

// ElectionHandlers serves the election-lifecycle HTTP surface.
type ElectionHandlers struct {
	registry     *Registry
	orchestrator *anchor.Orchestrator
	logger       *log.Logger
}

func NewElectionHandlers(registry *Registry, orchestrator *anchor.Orchestrator) *ElectionHandlers {
	return &ElectionHandlers{
		registry:     registry,
		orchestrator: orchestrator,
		logger:       log.New(os.Stderr, "[ElectionAPI] ", log.LstdFlags),
	}
}

type electionView struct {
	ID            uuid.UUID                  `json:"id"`
	Title         string                     `json:"title"`
	Status        election.Status            `json:"status"`
	Threshold     int                        `json:"threshold"`
	Total         int                        `json:"total"`
	CeremonyPhase string                     `json:"ceremonyPhase"`
	PublicKey     string                     `json:"publicKey,omitempty"`
	Questions     []questionView             `json:"questions"`
}

type questionView struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"displayName"`
	Candidates   []string  `json:"candidates"`
	WriteInLabel string    `json:"writeInLabel,omitempty"`
}

func toElectionView(e *election.Election) electionView {
	st := e.Ceremony().Status()
	view := electionView{
		ID:            e.ID,
		Title:         e.Title,
		Status:        e.Status(),
		Threshold:     e.Threshold,
		Total:         e.Total,
		CeremonyPhase: string(st.Phase),
	}
	if pk, err := e.Ceremony().PublicKey(); err == nil {
		view.PublicKey = pk
	}
	for _, q := range e.Questions() {
		view.Questions = append(view.Questions, questionView{
			ID: q.ID, DisplayName: q.DisplayName, Candidates: q.Candidates, WriteInLabel: q.WriteInLabel,
		})
	}
	return view
}

// HandleCreate handles POST /api/elections.
func (h *ElectionHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	e, err := h.registry.Create(req.Title, req.Threshold, req.Total)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, toElectionView(e), http.StatusOK)
}

// HandleGet handles GET /api/elections/{id}.
func (h *ElectionHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/api/elections/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, toElectionView(e), http.StatusOK)
}

// HandleAddQuestion handles POST /api/elections/{id}/questions (supplemental
// to §6's table, needed before registration can begin).
func (h *ElectionHandlers) HandleAddQuestion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/questions"), "/api/elections/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	var req AddQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	q, err := e.AddQuestion(req.DisplayName, req.Candidates, req.WriteInLabel)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, questionView{ID: q.ID, DisplayName: q.DisplayName, Candidates: q.Candidates, WriteInLabel: q.WriteInLabel}, http.StatusOK)
}

// HandleUpdateStatus handles PATCH /api/elections/{id}/status. Anchoring
// (§4.8) is invoked synchronously but its failure never rolls back the
// status change (§7 External error kind).
func (h *ElectionHandlers) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPatch {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/status"), "/api/elections/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	to := election.Status(req.Status)
	if err := e.Advance(to); err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	h.maybeAnchor(r.Context(), e, to)
	writeJSON(w, toElectionView(e), http.StatusOK)
}

// maybeAnchor submits the §4.8 start/close anchor payload after a
// successful registration->voting or tallying->complete transition. Failure
// is logged only: anchoring is best-effort and never rolls back the status
// change already committed by Advance.
func (h *ElectionHandlers) maybeAnchor(ctx context.Context, e *election.Election, to election.Status) {
	if h.orchestrator == nil {
		return
	}
	switch to {
	case election.StatusVoting:
		pk, err := e.Ceremony().PublicKeyBytes()
		if err != nil {
			h.logger.Printf("election %s: skip start anchor, no public key: %v", e.ID, err)
			return
		}
		_, canon, err := anchor.BuildStartPayload(e.ID, pk, e.Threshold, e.Total, time.Now())
		if err != nil {
			h.logger.Printf("election %s: build start payload: %v", e.ID, err)
			return
		}
		h.orchestrator.SubmitStart(ctx, e.ID, anchor.Keccak256(canon), canon)

	case election.StatusComplete:
		questions := e.Questions()
		roots := make([][32]byte, 0, len(questions))
		var voteCount uint64
		for _, q := range questions {
			snap := q.Ledger.Snapshot()
			root, err := codec.DecodeHex32(snap.Root)
			if err != nil {
				h.logger.Printf("election %s: skip close anchor, bad root for question %s: %v", e.ID, q.ID, err)
				return
			}
			roots = append(roots, root)
			voteCount += snap.Size
		}
		finalRoot, err := anchor.FinalRoot(roots)
		if err != nil {
			h.logger.Printf("election %s: skip close anchor: %v", e.ID, err)
			return
		}
		_, canon, err := anchor.BuildClosePayload(e.ID, finalRoot, voteCount, time.Now())
		if err != nil {
			h.logger.Printf("election %s: build close payload: %v", e.ID, err)
			return
		}
		h.orchestrator.SubmitClose(ctx, e.ID, anchor.Keccak256(canon), canon)
	}
}
