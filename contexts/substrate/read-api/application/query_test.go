package application_test

import (
	"context"
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/read-api/adapters/memory"
	"oxsubstrate/contexts/substrate/read-api/adapters/ratelimit"
	"oxsubstrate/contexts/substrate/read-api/application"
	"oxsubstrate/contexts/substrate/read-api/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/read-api/domain/errors"
)

func newUseCase(t *testing.T) (application.QueryUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SeedLiveEvents([]entities.LiveEventView{
		{SourceEventID: "evt-1", EventType: "agent.action.accepted", DeploymentTarget: "prod", ActorID: "agent-a", Summary: "did a thing", OccurredAt: time.Now()},
	})
	store.SeedArtifacts([]entities.ArtifactView{
		{ArtifactID: "art-1", AgentID: "agent-a", SubjectAgentID: "agent-b", Title: "note", Metadata: map[string]any{"x": 1}, CreatedAt: time.Now()},
	})
	uc := application.QueryUseCase{Repo: store, Limiter: ratelimit.New(), Clock: store}
	return uc, store
}

func TestListLiveDefaultsUnrecognizedRoleToViewer(t *testing.T) {
	uc, _ := newUseCase(t)
	_, _, err := uc.ListLive(context.Background(), "obs-1", "bogus-role", "", 10)
	if err != nil {
		t.Fatalf("unrecognized role should default to viewer, which satisfies the live endpoint minimum: %v", err)
	}
}

func TestListLiveStripsSourceEventIDForViewer(t *testing.T) {
	uc, _ := newUseCase(t)
	rows, role, err := uc.ListLive(context.Background(), "obs-1", "viewer", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != entities.RoleViewer {
		t.Fatalf("expected viewer role, got %s", role)
	}
	if len(rows) != 1 || rows[0].SourceEventID != "" {
		t.Fatalf("viewer must not see source event id: %+v", rows)
	}
}

func TestObserveRejectsNonAuditor(t *testing.T) {
	uc, _ := newUseCase(t)
	_, _, err := uc.Observe(context.Background(), "obs-1", "analyst")
	if err != domainerrors.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEveryRequestWritesAccessLog(t *testing.T) {
	uc, store := newUseCase(t)
	if _, _, err := uc.ListArtifacts(context.Background(), "obs-2", "analyst", "", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logs := store.AccessLogs()
	if len(logs) != 1 {
		t.Fatalf("expected exactly one access log row, got %d", len(logs))
	}
	if logs[0].Endpoint != "artifacts" || logs[0].ObserverID != "obs-2" {
		t.Fatalf("unexpected access log: %+v", logs[0])
	}
}

func TestRateLimitExceededRejectsAfterBudget(t *testing.T) {
	uc, _ := newUseCase(t)
	var lastErr error
	for i := 0; i < 65; i++ {
		_, _, lastErr = uc.ListLive(context.Background(), "obs-3", "viewer", "", 10)
	}
	if lastErr != domainerrors.ErrRateLimited {
		t.Fatalf("expected rate limit to trip within 65 calls at a 60/min budget, got %v", lastErr)
	}
}
