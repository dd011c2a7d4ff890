package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/projection/adapters/memory"
	"oxsubstrate/contexts/substrate/projection/application/workers"
	"oxsubstrate/contexts/substrate/projection/domain/entities"
	"oxsubstrate/contexts/substrate/projection/ports"
	"oxsubstrate/internal/shared/events"
)

// failingRepo wraps a Repository and forces UpsertLiveEvent to always
// error, exercising the dead-letter routing path.
type failingRepo struct {
	ports.Repository
}

func (failingRepo) UpsertLiveEvent(ctx context.Context, event entities.LiveEvent) (bool, error) {
	return false, errors.New("simulated write failure")
}

func buildDelivery(t *testing.T, eventType, actorID string, payload map[string]any) workers.Delivery {
	t.Helper()
	env, err := events.Build("evt-"+actorID+"-"+eventType, eventType, time.Now().UTC(), actorID, "corr-1", "idem-1", payload, nil)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return workers.Delivery{Topic: events.TopicAgents, Payload: body}
}

func TestConsumerProjectsAcceptedActionIntoArtifact(t *testing.T) {
	store := memory.NewStore()
	agents := make(chan workers.Delivery, 1)
	consumer := workers.Consumer{Agents: agents, Physics: make(chan workers.Delivery), Repo: store, Clock: store, IDGen: store}

	agents <- buildDelivery(t, "agent.action.accepted", "agent-1", map[string]any{
		"action_type":       "create",
		"artifact_type":     "proposal",
		"deployment_target": "zone-a",
		"balance_before":    100,
		"balance_after":     80,
		"requested_cost":    20,
		"estimated_cost":    20,
		"actual_cost":       20,
		"cognition_used":    true,
		"payload":           map[string]any{"title": "Build a dam", "summary": "Dam proposal"},
	})
	close(agents)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := consumer.Run(ctx); err != nil && err != context.DeadlineExceeded {
		t.Fatalf("unexpected Run error: %v", err)
	}

	artifacts := store.Artifacts()
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	if artifacts[0].Title != "Build a dam" {
		t.Fatalf("expected derived title, got %q", artifacts[0].Title)
	}
}

func TestConsumerRoutesEnvironmentRejectionWithoutTouchingSessions(t *testing.T) {
	store := memory.NewStore()
	agents := make(chan workers.Delivery, 1)
	consumer := workers.Consumer{Agents: agents, Physics: make(chan workers.Delivery), Repo: store, Clock: store, IDGen: store}

	agents <- buildDelivery(t, "agent.action_rejected.environment", "agent-1", map[string]any{
		"action_type":       "create",
		"reason":            "environment_outside_active_window",
		"deployment_target": "zone-a",
	})
	close(agents)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := consumer.Run(ctx); err != nil && err != context.DeadlineExceeded {
		t.Fatalf("unexpected Run error: %v", err)
	}

	if len(store.Sessions()) != 0 {
		t.Fatalf("expected no sessions to be opened for an environment rejection, got %d", len(store.Sessions()))
	}
}

func TestConsumerRoutesPersistentFailureToDeadLetterAndErrorInbox(t *testing.T) {
	store := memory.NewStore()
	repo := failingRepo{Repository: store}
	agents := make(chan workers.Delivery, 1)
	consumer := workers.Consumer{Agents: agents, Physics: make(chan workers.Delivery), Repo: repo, Clock: store, IDGen: store}

	agents <- buildDelivery(t, "agent.action.accepted", "agent-1", map[string]any{
		"action_type":       "create",
		"deployment_target": "zone-a",
	})
	close(agents)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := consumer.Run(ctx); err != nil && err != context.DeadlineExceeded {
		t.Fatalf("unexpected Run error: %v", err)
	}

	deadLetters, err := store.ListDeadLetters(context.Background())
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(deadLetters) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(deadLetters))
	}

	errs, err := store.ListErrors(context.Background())
	if err != nil {
		t.Fatalf("ListErrors: %v", err)
	}
	if len(errs) != 1 || errs[0].Count != 1 {
		t.Fatalf("expected 1 error-inbox entry with count 1, got %+v", errs)
	}
}
