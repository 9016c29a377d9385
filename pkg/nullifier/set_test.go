// Copyright 2025 Trustless Voting System

package nullifier

import (
	"testing"

	"github.com/google/uuid"
)

func TestConsumeAndLocate(t *testing.T) {
	s := NewSet()
	qID := uuid.New()

	if s.Contains("aa") {
		t.Fatal("fresh set should not contain anything")
	}

	if err := s.Consume("aa", qID, 3); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}

	if !s.Contains("aa") {
		t.Error("set should contain nullifier after consume")
	}

	loc, err := s.Locate("aa")
	if err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	if loc.QuestionID != qID || loc.Position != 3 {
		t.Errorf("unexpected location: %+v", loc)
	}
}

func TestConsumeRejectsDoubleSpend(t *testing.T) {
	s := NewSet()
	qID := uuid.New()

	if err := s.Consume("bb", qID, 0); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}

	err := s.Consume("bb", qID, 99)
	if err != ErrDoubleSpend {
		t.Fatalf("expected ErrDoubleSpend, got %v", err)
	}

	loc, _ := s.Locate("bb")
	if loc.Position != 0 {
		t.Errorf("double-spend attempt must not overwrite original location, got position %d", loc.Position)
	}
}

func TestLocateNotFound(t *testing.T) {
	s := NewSet()
	if _, err := s.Locate("cc"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
