package services_test

import (
	"strings"
	"testing"

	"oxsubstrate/contexts/substrate/projection/domain/services"
)

func TestDeriveArtifactFieldsCommunicateTruncatesMessage(t *testing.T) {
	payload := map[string]any{"message": strings.Repeat("x", 250)}
	fields := services.DeriveArtifactFields("communicate", "", payload)
	if fields.Title != "Communication" {
		t.Fatalf("expected title Communication, got %q", fields.Title)
	}
	if len(fields.Summary) != 200 {
		t.Fatalf("expected summary truncated to 200 chars, got %d", len(fields.Summary))
	}
}

func TestDeriveArtifactFieldsCreateProposalUsesTitleAndSummary(t *testing.T) {
	payload := map[string]any{"title": "New plan", "summary": "the plan body"}
	fields := services.DeriveArtifactFields("create", "proposal", payload)
	if fields.Title != "New plan" || fields.Summary != "the plan body" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestDeriveArtifactFieldsCritiqueFallsBackToReasonWhenSummaryMissing(t *testing.T) {
	payload := map[string]any{"reason": "inconsistent assumptions"}
	fields := services.DeriveArtifactFields("critique", "", payload)
	if fields.Summary != "inconsistent assumptions" {
		t.Fatalf("expected fallback to reason, got %q", fields.Summary)
	}
}

func TestDeriveArtifactFieldsDefaultsTitleToActionType(t *testing.T) {
	fields := services.DeriveArtifactFields("observe", "", nil)
	if fields.Title != "observe" {
		t.Fatalf("expected title observe, got %q", fields.Title)
	}
	if fields.Summary != "" {
		t.Fatalf("expected empty summary, got %q", fields.Summary)
	}
}
