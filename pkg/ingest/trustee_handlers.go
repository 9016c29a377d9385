// Copyright 2025 Trustless Voting System
//
// Trustee registration and commitment handlers for the threshold ceremony
// (C4), exposed on top of pkg/election's per-election *ceremony.Ceremony.

package ingest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// TrusteeHandlers serves the ceremony trustee-enrollment HTTP surface.
type TrusteeHandlers struct {
	registry *Registry
}

func NewTrusteeHandlers(registry *Registry) *TrusteeHandlers {
	return &TrusteeHandlers{registry: registry}
}

type trusteeView struct {
	ID             uuid.UUID `json:"id"`
	DisplayName    string    `json:"displayName"`
	ShareIndex     uint64    `json:"shareIndex"`
	Status         string    `json:"status"`
	CommitmentHash string    `json:"commitmentHash,omitempty"`
}

// HandleRegister handles POST /api/elections/{id}/trustees.
func (h *TrusteeHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionID, err := uuid.Parse(strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/trustees"), "/api/elections/"))
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	e, err := h.registry.Get(electionID)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	var req RegisterTrusteeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := e.Ceremony().RegisterTrustee(req.Name, req.PublicKey)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, trusteeView{ID: t.ID, DisplayName: t.DisplayName, ShareIndex: t.ShareIndex, Status: string(t.Status)}, http.StatusOK)
}

// HandleSubmitCommitment handles
// POST /api/elections/{id}/trustees/{tid}/commitment.
func (h *TrusteeHandlers) HandleSubmitCommitment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/elections/")
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] != "trustees" || parts[3] != "commitment" {
		writeJSONError(w, "malformed path", http.StatusBadRequest)
		return
	}
	electionID, err := uuid.Parse(parts[0])
	if err != nil {
		writeJSONError(w, "invalid election id", http.StatusBadRequest)
		return
	}
	trusteeID, err := uuid.Parse(parts[2])
	if err != nil {
		writeJSONError(w, "invalid trustee id", http.StatusBadRequest)
		return
	}

	e, err := h.registry.Get(electionID)
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	var req SubmitCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := e.Ceremony().SubmitCommitment(trusteeID, req.CommitmentHash, req.FeldmanCommitments); err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, toElectionView(e), http.StatusOK)
}
