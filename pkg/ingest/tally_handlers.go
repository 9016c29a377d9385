// Copyright 2025 Trustless Voting System
//
// Decryption ceremony handlers (C5) — POST /api/vote/tally/{id}/start,
// POST /api/vote/tally/{id}/decrypt, GET /api/vote/tally/{id}/status.

package ingest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jasonsutter87/tvs-core/pkg/ceremony"
)

// TallyHandlers serves the decryption-ceremony HTTP surface.
type TallyHandlers struct {
	registry *Registry
}

func NewTallyHandlers(registry *Registry) *TallyHandlers {
	return &TallyHandlers{registry: registry}
}

// HandleStart handles POST /api/vote/tally/{id}/start.
func (h *TallyHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/start"), "/api/vote/tally/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	d := e.Decryption()
	if d == nil {
		writeJSONError(w, "election has not reached tallying status", http.StatusConflict)
		return
	}
	if err := d.Start(); err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, d.Status(), http.StatusOK)
}

// HandleDecrypt handles POST /api/vote/tally/{id}/decrypt: one trustee's
// partial-decryption submission for one question.
func (h *TallyHandlers) HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/decrypt"), "/api/vote/tally/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	d := e.Decryption()
	if d == nil {
		writeJSONError(w, "election has not reached tallying status", http.StatusConflict)
		return
	}

	var req TallyDecryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	shares := make([]ceremony.PartialShare, len(req.PartialDecryptions))
	for i, pd := range req.PartialDecryptions {
		point, err := ceremony.ParsePoint(pd.Partial)
		if err != nil {
			writeJSONError(w, "invalid curve point in partial decryption", http.StatusBadRequest)
			return
		}
		shares[i] = ceremony.PartialShare{CandidateIndex: pd.CandidateIndex, Partial: point}
	}

	if err := d.SubmitShares(req.TrusteeID, req.ShareIndex, req.QuestionID, shares); err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, d.Status(), http.StatusOK)
}

// HandleComplete handles POST /api/vote/tally/{id}/complete: marks the
// decryption ceremony finished once every candidate in every question has a
// recovered result. Must be called before the election can advance
// tallying->complete (election.Advance checks the ceremony's phase).
func (h *TallyHandlers) HandleComplete(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/complete"), "/api/vote/tally/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	d := e.Decryption()
	if d == nil {
		writeJSONError(w, "election has not reached tallying status", http.StatusConflict)
		return
	}
	if err := d.Complete(); err != nil {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, d.Status(), http.StatusOK)
}

// HandleStatus handles GET /api/vote/tally/{id}/status, also returning each
// question's recovered per-candidate tallies as they become available.
func (h *TallyHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, err := uuid.Parse(strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/status"), "/api/vote/tally/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(id)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	d := e.Decryption()
	if d == nil {
		writeJSONError(w, "election has not reached tallying status", http.StatusConflict)
		return
	}

	type questionResult struct {
		QuestionID uuid.UUID      `json:"questionId"`
		Tallies    map[string]int `json:"tallies"`
	}
	results := make([]questionResult, 0, len(e.Questions()))
	for _, q := range e.Questions() {
		qr := questionResult{QuestionID: q.ID, Tallies: make(map[string]int)}
		for idx, candidate := range q.Candidates {
			if count, ok := d.Result(q.ID, idx); ok {
				qr.Tallies[candidate] = count
			}
		}
		results = append(results, qr)
	}

	writeJSON(w, map[string]interface{}{
		"status":  d.Status(),
		"results": results,
	}, http.StatusOK)
}
