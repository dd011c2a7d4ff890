package services_test

import (
	"testing"

	"oxsubstrate/contexts/substrate/read-api/domain/entities"
	"oxsubstrate/contexts/substrate/read-api/domain/services"
)

func TestRoleSatisfiesNesting(t *testing.T) {
	if !entities.RoleAuditor.Satisfies(entities.RoleViewer) {
		t.Fatal("auditor should satisfy viewer minimum")
	}
	if entities.RoleViewer.Satisfies(entities.RoleAnalyst) {
		t.Fatal("viewer should not satisfy analyst minimum")
	}
	if entities.ObserverRole("bogus").Satisfies(entities.RoleViewer) {
		t.Fatal("unrecognized role must not satisfy even the lowest minimum")
	}
}

func TestNormalizeRoleDefaultsToViewer(t *testing.T) {
	if got := entities.NormalizeRole(""); got != entities.RoleViewer {
		t.Fatalf("empty role should default to viewer, got %q", got)
	}
	if got := entities.NormalizeRole("ultra"); got != entities.RoleViewer {
		t.Fatalf("unrecognized role should default to viewer, got %q", got)
	}
	if got := entities.NormalizeRole("auditor"); got != entities.RoleAuditor {
		t.Fatalf("recognized role should pass through, got %q", got)
	}
}

func TestObserveEndpointRequiresAuditor(t *testing.T) {
	if services.MinRole(services.EndpointObserve) != entities.RoleAuditor {
		t.Fatal("observe endpoint must require auditor")
	}
	if services.MinRole(services.EndpointLive) != entities.RoleViewer {
		t.Fatal("live endpoint must allow viewer")
	}
}

func TestFilterLiveEventStripsSourceEventIDBelowAuditor(t *testing.T) {
	view := entities.LiveEventView{SourceEventID: "evt-1", EventType: "agent.action.accepted"}
	analystView := services.FilterLiveEvent(entities.RoleAnalyst, view)
	if analystView.SourceEventID != "" {
		t.Fatal("analyst should not see source event id")
	}
	auditorView := services.FilterLiveEvent(entities.RoleAuditor, view)
	if auditorView.SourceEventID != "evt-1" {
		t.Fatal("auditor should see source event id")
	}
}

func TestFilterArtifactStripsMetadataAndSourceEventIDByTier(t *testing.T) {
	view := entities.ArtifactView{
		SourceEventID: "evt-2",
		Metadata:      map[string]any{"k": "v"},
	}
	viewerView := services.FilterArtifact(entities.RoleViewer, view)
	if viewerView.Metadata != nil || viewerView.SourceEventID != "" {
		t.Fatal("viewer should see neither metadata nor source event id")
	}
	analystView := services.FilterArtifact(entities.RoleAnalyst, view)
	if analystView.Metadata == nil {
		t.Fatal("analyst should see metadata")
	}
	if analystView.SourceEventID != "" {
		t.Fatal("analyst should not see source event id")
	}
	auditorView := services.FilterArtifact(entities.RoleAuditor, view)
	if auditorView.SourceEventID != "evt-2" {
		t.Fatal("auditor should see source event id")
	}
}

func TestFilterSessionStripsActionTypeCountsBelowAnalyst(t *testing.T) {
	view := entities.SessionView{ActionTypeCounts: map[string]int{"communicate": 3}}
	viewerView := services.FilterSession(entities.RoleViewer, view)
	if viewerView.ActionTypeCounts != nil {
		t.Fatal("viewer should not see action type counts")
	}
	analystView := services.FilterSession(entities.RoleAnalyst, view)
	if analystView.ActionTypeCounts == nil {
		t.Fatal("analyst should see action type counts")
	}
}
