// Package entities holds the Read API's own domain vocabulary: observer
// roles, the always-written access log, and the view rows its handlers
// serve. The underlying data is owned by the projection materializer; this
// package never imports its domain types, mirroring the cross-context
// read pattern the other substrate contexts already use for each other's
// tables.
package entities

import "time"

// ObserverRole is the three-tier access level every read request resolves
// to (spec §4.6). Roles nest: viewer ⊂ analyst ⊂ auditor.
type ObserverRole string

const (
	RoleViewer  ObserverRole = "viewer"
	RoleAnalyst ObserverRole = "analyst"
	RoleAuditor ObserverRole = "auditor"
)

// rank orders roles for the "at least" comparison every endpoint applies.
var rank = map[ObserverRole]int{
	RoleViewer:  1,
	RoleAnalyst: 2,
	RoleAuditor: 3,
}

// Satisfies reports whether role meets or exceeds minimum. An unrecognized
// role never satisfies anything, including viewer.
func (role ObserverRole) Satisfies(minimum ObserverRole) bool {
	r, ok := rank[role]
	if !ok {
		return false
	}
	m, ok := rank[minimum]
	if !ok {
		return false
	}
	return r >= m
}

// Normalize defaults an empty/unrecognized role string to viewer, the
// spec's stated default.
func NormalizeRole(raw string) ObserverRole {
	role := ObserverRole(raw)
	if _, ok := rank[role]; !ok {
		return RoleViewer
	}
	return role
}

// AccessLog is always written, never queried on the hot path (spec §3).
type AccessLog struct {
	ObserverID    string
	ObserverRole  ObserverRole
	Endpoint      string
	QueryParams   string
	ResponseCount int
	AccessedAt    time.Time
}

// LiveEventView is the GET /ox/live row, already role-trimmed by the
// caller before serialization.
type LiveEventView struct {
	SourceEventID    string
	EventType        string
	DeploymentTarget string
	ActorID          string
	Summary          string
	OccurredAt       time.Time
}

// SessionView is the GET /ox/sessions row.
type SessionView struct {
	SessionID             string
	DeploymentTarget      string
	ParticipatingAgentIDs []string
	StartTS               time.Time
	EndTS                 time.Time
	IsActive              bool
	DerivedTopic          string
	EventCount            int
	ActionTypeCounts      map[string]int
}

// ArtifactView is the GET /ox/artifacts row, optionally joined with its
// implications for the "perceived-by" shape.
type ArtifactView struct {
	ArtifactID     string
	Type           string
	SourceEventID  string
	AgentID        string
	SubjectAgentID string
	Title          string
	ContentSummary string
	Metadata       map[string]any
	CreatedAt      time.Time
	IssuingAgentIDs []string
}

// ErrorInboxView and DeadLetterView back the auditor-only GET /ox/observe
// surface (spec §7's infrastructure-error retention requirement).
type ErrorInboxView struct {
	Fingerprint  string
	Source       string
	Count        int
	SampleDetail string
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
}

type DeadLetterView struct {
	SourceEventID string
	Topic         string
	EventType     string
	Reason        string
	Attempts      int
	RoutedAt      time.Time
	Redriven      bool
	// Payload is the original envelope bytes, carried so RedriveDeadLetter
	// can republish it without a second query; never serialized in the
	// GET /ox/observe response.
	Payload []byte
}

// ObserveView is the combined GET /ox/observe payload.
type ObserveView struct {
	Errors      []ErrorInboxView
	DeadLetters []DeadLetterView
}
