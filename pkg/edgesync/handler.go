// Copyright 2025 Trustless Voting System
//
// HTTP surface for the edge-sync server: POST /api/sync/upload (§4.10,
// the only route in the external-interfaces table for C11).

package edgesync

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jasonsutter87/tvs-core/pkg/election"
	"github.com/jasonsutter87/tvs-core/pkg/ingest"
)

// Handler adapts Server to net/http, matching pkg/ingest's handler shape:
// a struct holding its collaborators, one HandleX method per route, no
// router framework.
type Handler struct {
	server *Server
}

func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

// HandleUpload handles POST /api/sync/upload.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.server.Submit(req, time.Now().UnixMilli())
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingBatchID), errors.Is(err, ErrInvalidNullifier):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownNode), errors.Is(err, ErrNotRSAKey), errors.Is(err, ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, election.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, election.ErrQuestionNotFound), errors.Is(err, ingest.ErrElectionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, map[string]string{"error": msg}, status)
}
