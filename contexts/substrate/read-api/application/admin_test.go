package application_test

import (
	"context"
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/read-api/adapters/memory"
	"oxsubstrate/contexts/substrate/read-api/application"
	"oxsubstrate/contexts/substrate/read-api/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/read-api/domain/errors"
)

type recordingPublisher struct {
	topic   string
	payload []byte
	calls   int
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.topic = topic
	p.payload = payload
	p.calls++
	return nil
}

func TestRedriveDeadLetterRejectsNonOpsRole(t *testing.T) {
	store := memory.NewStore()
	publisher := &recordingPublisher{}
	uc := application.AdminUseCase{Repo: store, Publisher: publisher}
	err := uc.RedriveDeadLetter(context.Background(), "auditor", "evt-1")
	if err != domainerrors.ErrOpsForbidden {
		t.Fatalf("expected ErrOpsForbidden, got %v", err)
	}
	if publisher.calls != 0 {
		t.Fatal("publisher must not be called when ops gate rejects the request")
	}
}

func TestRedriveDeadLetterRepublishesAndMarksRedriven(t *testing.T) {
	store := memory.NewStore()
	store.SeedDeadLetters([]entities.DeadLetterView{
		{SourceEventID: "evt-1", Topic: "ox.agents", Payload: []byte(`{"event_id":"evt-1"}`), RoutedAt: time.Now()},
	})
	publisher := &recordingPublisher{}
	uc := application.AdminUseCase{Repo: store, Publisher: publisher}

	if err := uc.RedriveDeadLetter(context.Background(), "ops", "evt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if publisher.calls != 1 || publisher.topic != "ox.agents" {
		t.Fatalf("expected one republish on ox.agents, got %+v", publisher)
	}

	remaining, err := store.ListDeadLetters(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("redriven dead letter should no longer be listed, got %+v", remaining)
	}
}

func TestRedriveDeadLetterRejectsUnknownID(t *testing.T) {
	store := memory.NewStore()
	publisher := &recordingPublisher{}
	uc := application.AdminUseCase{Repo: store, Publisher: publisher}
	err := uc.RedriveDeadLetter(context.Background(), "ops", "missing")
	if err != domainerrors.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
