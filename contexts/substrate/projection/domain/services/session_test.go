package services_test

import (
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/projection/domain/entities"
	"oxsubstrate/contexts/substrate/projection/domain/services"
)

func TestDecideSessionOpensNewSessionOnEscalationWithNoCandidates(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	session, found, isNew, stale := services.DecideSession(nil, "zone-a", "agent-1", "conflict", now, nil)
	if !found || !isNew {
		t.Fatalf("expected a brand new session to be opened, found=%v isNew=%v", found, isNew)
	}
	if len(stale) != 0 {
		t.Fatalf("expected no stale sessions, got %d", len(stale))
	}
	if !session.HasParticipant("agent-1") {
		t.Fatalf("expected agent-1 to be a participant")
	}
}

func TestDecideSessionDoesNotOpenSessionForOrdinaryActionWithNoRecentOthers(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, found, _, _ := services.DecideSession(nil, "zone-a", "agent-1", "create", now, nil)
	if found {
		t.Fatalf("expected no session for a solo, non-escalation action")
	}
}

func TestDecideSessionJoinsExistingSessionByMembership(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)
	existing := entities.Session{
		SessionID:             "sess-1",
		DeploymentTarget:      "zone-a",
		ParticipatingAgentIDs: []string{"agent-1"},
		StartTS:               now.Add(-1 * time.Minute),
		IsActive:              true,
		LastEventAt:           now.Add(-10 * time.Second),
		LastEventAgentID:      "agent-1",
	}

	session, found, isNew, _ := services.DecideSession([]entities.Session{existing}, "zone-a", "agent-1", "create", now, nil)
	if !found || isNew {
		t.Fatalf("expected existing session to be matched, found=%v isNew=%v", found, isNew)
	}
	if session.SessionID != "sess-1" {
		t.Fatalf("expected sess-1, got %q", session.SessionID)
	}
}

func TestDecideSessionClosesStaleSessionAndDoesNotMatchIt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	stale := entities.Session{
		SessionID:             "sess-stale",
		DeploymentTarget:      "zone-a",
		ParticipatingAgentIDs: []string{"agent-1"},
		StartTS:               now.Add(-20 * time.Minute),
		IsActive:              true,
		LastEventAt:           now.Add(-10 * time.Minute),
		LastEventAgentID:      "agent-1",
	}

	_, found, _, staleToClose := services.DecideSession([]entities.Session{stale}, "zone-a", "agent-1", "create", now, nil)
	if found {
		t.Fatalf("expected stale session not to be matched for an ordinary action")
	}
	if len(staleToClose) != 1 || staleToClose[0].IsActive {
		t.Fatalf("expected the stale session to be returned closed, got %+v", staleToClose)
	}
}

func TestApplyEventIncrementsCountsAndRecomputesTopic(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session := entities.Session{SessionID: "sess-1", ActionTypeCounts: map[string]int{}}

	session = services.ApplyEvent(session, "agent-1", "exchange", now)

	if session.EventCount != 1 {
		t.Fatalf("expected event count 1, got %d", session.EventCount)
	}
	if session.DerivedTopic != entities.TopicExchangeScene {
		t.Fatalf("expected exchange_scene, got %q", session.DerivedTopic)
	}
	if !session.HasParticipant("agent-1") {
		t.Fatalf("expected agent-1 to be folded in as participant")
	}
}
