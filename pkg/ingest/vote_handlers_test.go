// Copyright 2025 Trustless Voting System

package ingest

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestVoteRejectedBeforeVotingStatus(t *testing.T) {
	registry := NewRegistry()
	voteH := NewVoteHandlers(registry, nil, "")

	e, err := registry.Create("e", 1, 1)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	q, err := e.AddQuestion("Q", []string{"A", "B"}, "")
	if err != nil {
		t.Fatalf("add question: %v", err)
	}

	rec := doJSON(t, voteH.HandleVote, http.MethodPost, "/api/vote", VoteRequest{
		ElectionID: e.ID, QuestionID: q.ID,
		Credential: Credential{ElectionID: e.ID, Nullifier: "a"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request (not voting + invalid nullifier), got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestVoteRejectedOnElectionMismatch(t *testing.T) {
	registry := NewRegistry()
	voteH := NewVoteHandlers(registry, nil, "")

	e, _ := registry.Create("e", 1, 1)
	q, _ := e.AddQuestion("Q", []string{"A"}, "")

	rec := doJSON(t, voteH.HandleVote, http.MethodPost, "/api/vote", VoteRequest{
		ElectionID: e.ID, QuestionID: q.ID,
		Credential: Credential{ElectionID: uuid.New(), Nullifier: mustHexNullifier(t)},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestVoteRejectedOnUnknownElection(t *testing.T) {
	registry := NewRegistry()
	voteH := NewVoteHandlers(registry, nil, "")

	rec := doJSON(t, voteH.HandleVote, http.MethodPost, "/api/vote", VoteRequest{
		ElectionID: uuid.New(), QuestionID: uuid.New(),
		Credential: Credential{Nullifier: mustHexNullifier(t)},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected not found, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestStatsEndpointBeforeVoting(t *testing.T) {
	registry := NewRegistry()
	voteH := NewVoteHandlers(registry, nil, "")
	e, _ := registry.Create("e", 1, 1)
	e.AddQuestion("Q", []string{"A", "B"}, "")

	rec := doJSON(t, voteH.HandleStats, http.MethodGet, "/api/vote/stats/"+e.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d body %s", rec.Code, rec.Body.String())
	}
}
