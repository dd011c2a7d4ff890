// Package entities holds the Projection Materializer's read-model rows.
// Every table here is derived, never authoritative: the event log owned by
// each substrate context is the source of truth, and every row carries the
// source_event_id it was derived from so replays never duplicate it.
package entities

import "time"

// LiveEvent is a direct, lightly-summarized materialization of one envelope
// (spec §4.5). It is the feed behind GET /ox/live.
type LiveEvent struct {
	SourceEventID string
	EventType     string
	DeploymentTarget string
	ActorID       string
	Summary       string
	OccurredAt    time.Time
}

// DerivedTopic is the narrative label a Session is tagged with, recomputed
// from the multiset of action types observed so far (spec §4.5).
type DerivedTopic string

const (
	TopicConflictScene      DerivedTopic = "conflict_scene"
	TopicExchangeScene      DerivedTopic = "exchange_scene"
	TopicAssociationScene   DerivedTopic = "association_scene"
	TopicCollaborativeScene DerivedTopic = "collaborative_scene"
	TopicCommunicationScene DerivedTopic = "communication_scene"
	TopicCreationScene      DerivedTopic = "creation_scene"
	TopicGeneralActivity    DerivedTopic = "general_activity"
)

// Session is a heuristic grouping of action events in time and space.
type Session struct {
	SessionID             string
	DeploymentTarget       string
	ParticipatingAgentIDs  []string
	StartTS                time.Time
	EndTS                  time.Time
	IsActive               bool
	DerivedTopic           DerivedTopic
	EventCount             int
	ActionTypeCounts       map[string]int
	LastEventAt            time.Time
	LastEventAgentID       string
}

// HasParticipant reports whether agentID is already a member.
func (s Session) HasParticipant(agentID string) bool {
	for _, id := range s.ParticipatingAgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// WithParticipant returns s with agentID added to the participant set
// (set semantics — no duplicate entries).
func (s Session) WithParticipant(agentID string) Session {
	if s.HasParticipant(agentID) {
		return s
	}
	s.ParticipatingAgentIDs = append(append([]string{}, s.ParticipatingAgentIDs...), agentID)
	return s
}

// SessionEvent links one action event to the session it was folded into.
type SessionEvent struct {
	SessionID     string
	SourceEventID string
	AgentID       string
	ActionType    string
	TS            time.Time
}

// AgentPattern is a rolling observation window over one agent's activity,
// upserted per (agent_id, window_start) on every action event (spec §4.5).
type AgentPattern struct {
	AgentID             string
	WindowStart         time.Time
	WindowEnd           time.Time
	ActionCounts        map[string]ActionTypeCount
	CollaborationBreadth int
	CoActorIDs          []string
}

// ActionTypeCount tracks total/accepted/rejected admission outcomes for one
// action type within a pattern window.
type ActionTypeCount struct {
	Total    int
	Accepted int
	Rejected int
}

// WithCoActor returns p with coActorID recorded toward collaboration
// breadth (set semantics).
func (p AgentPattern) WithCoActor(coActorID string) AgentPattern {
	for _, id := range p.CoActorIDs {
		if id == coActorID {
			return p
		}
	}
	p.CoActorIDs = append(append([]string{}, p.CoActorIDs...), coActorID)
	p.CollaborationBreadth = len(p.CoActorIDs)
	return p
}

// Artifact is a derived, bounded record summarizing an accepted action
// (spec §6 derivation table).
type Artifact struct {
	ArtifactID      string
	Type            string
	SourceEventID   string
	AgentID         string
	SubjectAgentID  string
	Title           string
	ContentSummary  string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// ArtifactImplication links an implicating action's issuer to its subject.
type ArtifactImplication struct {
	ArtifactImplicationID string
	ArtifactID            string
	SourceEventID         string
	IssuingAgentID        string
	SubjectAgentID        string
	ImplicationType       string
	CreatedAt             time.Time
}

// CapacityTimelineEntry is one balance transition row (spec §4.5).
type CapacityTimelineEntry struct {
	SourceEventID string
	AgentID       string
	TS            time.Time
	BalanceBefore int
	BalanceAfter  int
	RequestedCost int
	EstimatedCost int
	ActualCost    int
	CognitionUsed bool
}

// EnvironmentHistoryEntry records a constraint change on a deployment
// target, derived from environment.state_changed / state_removed.
type EnvironmentHistoryEntry struct {
	SourceEventID          string
	DeploymentTarget       string
	CognitionAvailability  string
	MaxThroughputPerMinute *int
	ThrottleFactor         float64
	Reason                 string
	Removed                bool
	OccurredAt             time.Time
}

// EnvironmentRejection records one agent.action_rejected.environment-class
// event for the EnvironmentRejections projection.
type EnvironmentRejection struct {
	SourceEventID    string
	AgentID          string
	DeploymentTarget string
	Reason           string
	OccurredAt       time.Time
}

// NarrativeFrame is a coarse, periodic rollup of physics-tick activity
// (braid composition / interference) for a deployment target, used to
// narrate "what is the world doing right now" alongside session activity.
type NarrativeFrame struct {
	SourceEventID    string
	DeploymentTarget string
	TickID           string
	Summary          string
	OccurredAt       time.Time
}

// AgentActivity is the narrow per-(deployment,agent) "last acted at"
// marker the session/pattern heuristics consult to decide whether another
// agent acted recently — the rolling-window input spec §4.5 assumes but
// does not name as its own table.
type AgentActivity struct {
	DeploymentTarget string
	AgentID          string
	LastActionType   string
	LastActedAt      time.Time
}

// ErrorInboxEntry is a bounded fingerprint counter for infrastructure-class
// errors observed while consuming the bus (decode failures, repository
// write failures), retained only as a count plus most-recent sample rather
// than one row per occurrence.
type ErrorInboxEntry struct {
	Fingerprint  string
	Source       string
	Count        int
	SampleDetail string
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
}

// DeadLetterEntry is an envelope the consumer could not project after
// exhausting its retry budget, parked for manual inspection/re-drive.
type DeadLetterEntry struct {
	SourceEventID string
	Topic         string
	EventType     string
	Payload       []byte
	Reason        string
	Attempts      int
	RoutedAt      time.Time
	Redriven      bool
}
