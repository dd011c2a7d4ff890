package services

import "oxsubstrate/contexts/substrate/read-api/domain/entities"

// Endpoint names the read surfaces §4.6 assigns a minimum role and rate
// limit to.
type Endpoint string

const (
	EndpointLive      Endpoint = "live"
	EndpointSessions  Endpoint = "sessions"
	EndpointArtifacts Endpoint = "artifacts"
	EndpointObserve   Endpoint = "observe"
)

// endpointPolicy pairs a minimum observer role with a requests-per-minute
// budget (spec §4.6's "e.g. 60 req/min live, 30 req/min artifacts").
type endpointPolicy struct {
	MinRole         entities.ObserverRole
	RequestsPerMin  int
}

var policies = map[Endpoint]endpointPolicy{
	EndpointLive:      {MinRole: entities.RoleViewer, RequestsPerMin: 60},
	EndpointSessions:  {MinRole: entities.RoleViewer, RequestsPerMin: 60},
	EndpointArtifacts: {MinRole: entities.RoleViewer, RequestsPerMin: 30},
	// /ox/observe surfaces infrastructure error counters and dead letters,
	// which name source event ids and internal failure detail — restricted
	// to auditor, the role spec §4.6 trusts with "everything including
	// source event ids".
	EndpointObserve: {MinRole: entities.RoleAuditor, RequestsPerMin: 30},
}

// MinRole returns the minimum role an endpoint requires.
func MinRole(endpoint Endpoint) entities.ObserverRole {
	return policies[endpoint].MinRole
}

// RequestsPerMinute returns an endpoint's token-bucket budget.
func RequestsPerMinute(endpoint Endpoint) int {
	if p, ok := policies[endpoint]; ok && p.RequestsPerMin > 0 {
		return p.RequestsPerMin
	}
	return 60
}

// FilterLiveEvent trims a live event row for role. Viewer sees only the
// summary and coarse identity; analyst and auditor see the full row, with
// auditor additionally retaining the source event id (viewer/analyst keep
// it blank, since it doubles as an internal replay handle).
func FilterLiveEvent(role entities.ObserverRole, view entities.LiveEventView) entities.LiveEventView {
	if !role.Satisfies(entities.RoleAuditor) {
		view.SourceEventID = ""
	}
	return view
}

// FilterArtifact trims an artifact row for role. Viewer sees title/summary
// only (no metadata, no source event id); analyst sees the full payload;
// auditor additionally sees the source event id.
func FilterArtifact(role entities.ObserverRole, view entities.ArtifactView) entities.ArtifactView {
	if !role.Satisfies(entities.RoleAnalyst) {
		view.Metadata = nil
	}
	if !role.Satisfies(entities.RoleAuditor) {
		view.SourceEventID = ""
	}
	return view
}

// FilterSession trims a session row for role. Viewer sees a summary shape
// only (topic, participant count, event count, not the raw per-type
// counter breakdown); analyst and auditor see the full action_type_counts
// map.
func FilterSession(role entities.ObserverRole, view entities.SessionView) entities.SessionView {
	if !role.Satisfies(entities.RoleAnalyst) {
		view.ActionTypeCounts = nil
	}
	return view
}
