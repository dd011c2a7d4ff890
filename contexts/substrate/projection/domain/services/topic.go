package services

import "oxsubstrate/contexts/substrate/projection/domain/entities"

// DeriveTopic recomputes a session's derived_topic from the multiset of
// action types seen so far (spec §4.5): conflict dominates, then exchange,
// then associate, then communicate+create together, then communicate alone,
// then create alone, else general_activity.
func DeriveTopic(actionTypeCounts map[string]int) entities.DerivedTopic {
	has := func(actionType string) bool { return actionTypeCounts[actionType] > 0 }

	switch {
	case has("conflict"):
		return entities.TopicConflictScene
	case has("exchange"):
		return entities.TopicExchangeScene
	case has("associate"):
		return entities.TopicAssociationScene
	case has("communicate") && has("create"):
		return entities.TopicCollaborativeScene
	case has("communicate"):
		return entities.TopicCommunicationScene
	case has("create"):
		return entities.TopicCreationScene
	default:
		return entities.TopicGeneralActivity
	}
}

// IsEscalation reports whether actionType alone is enough to start a new
// session even without another agent's recent activity (spec §4.5).
func IsEscalation(actionType string) bool {
	return actionType == "conflict" || actionType == "withdraw"
}
