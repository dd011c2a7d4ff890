package services_test

import (
	"testing"

	"oxsubstrate/contexts/substrate/projection/domain/entities"
	"oxsubstrate/contexts/substrate/projection/domain/services"
)

func TestDeriveTopicPrioritizesConflictOverEverything(t *testing.T) {
	topic := services.DeriveTopic(map[string]int{
		"conflict": 1, "exchange": 1, "communicate": 1, "create": 1,
	})
	if topic != entities.TopicConflictScene {
		t.Fatalf("expected conflict_scene, got %q", topic)
	}
}

func TestDeriveTopicCollaborativeNeedsBothCommunicateAndCreate(t *testing.T) {
	topic := services.DeriveTopic(map[string]int{"communicate": 1, "create": 1})
	if topic != entities.TopicCollaborativeScene {
		t.Fatalf("expected collaborative_scene, got %q", topic)
	}
}

func TestDeriveTopicCommunicateAloneFallsBackToCommunicationScene(t *testing.T) {
	topic := services.DeriveTopic(map[string]int{"communicate": 1})
	if topic != entities.TopicCommunicationScene {
		t.Fatalf("expected communication_scene, got %q", topic)
	}
}

func TestDeriveTopicDefaultsToGeneralActivity(t *testing.T) {
	topic := services.DeriveTopic(map[string]int{"observe": 3})
	if topic != entities.TopicGeneralActivity {
		t.Fatalf("expected general_activity, got %q", topic)
	}
}

func TestIsEscalation(t *testing.T) {
	for _, actionType := range []string{"conflict", "withdraw"} {
		if !services.IsEscalation(actionType) {
			t.Fatalf("expected %q to be an escalation action", actionType)
		}
	}
	if services.IsEscalation("communicate") {
		t.Fatalf("expected communicate not to be an escalation action")
	}
}
