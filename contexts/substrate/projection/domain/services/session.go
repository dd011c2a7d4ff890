package services

import (
	"time"

	"oxsubstrate/contexts/substrate/projection/domain/entities"
)

// SessionWindow bounds how long a session's start can trail the event being
// folded into it; sessions older than this are no longer candidates even if
// still marked active (spec §4.5).
const SessionWindow = 5 * time.Minute

// RecentActivityWindow is the "another agent acted recently" lookback used
// both to extend an existing session and to decide whether a brand new one
// should be opened (spec §4.5).
const RecentActivityWindow = 30 * time.Second

// DecideSession implements the spec §4.5 session-derivation heuristic for
// one action event. candidates must already be scoped to the event's
// deployment target and is_active = true.
//
// Returns:
//   - session: the session to upsert (existing, extended, or newly created)
//   - found: whether any session applies to this event at all
//   - isNew: whether session is a brand new row (false means an existing
//     session was matched and should be updated in place)
//   - staleToClose: candidates observed to be stale (no activity within
//     SessionWindow) that should be persisted as closed
func DecideSession(
	candidates []entities.Session,
	deploymentTarget, agentID, actionType string,
	now time.Time,
	recentOtherActors []string,
) (session entities.Session, found bool, isNew bool, staleToClose []entities.Session) {
	for _, s := range candidates {
		if now.Sub(s.LastEventAt) > SessionWindow {
			s.IsActive = false
			s.EndTS = s.LastEventAt
			staleToClose = append(staleToClose, s)
			continue
		}
		if now.Sub(s.StartTS) > SessionWindow {
			continue
		}
		matchesByMembership := s.HasParticipant(agentID)
		matchesByRecency := s.LastEventAgentID != agentID && now.Sub(s.LastEventAt) <= RecentActivityWindow
		if matchesByMembership || matchesByRecency {
			return s.WithParticipant(agentID), true, false, staleToClose
		}
	}

	if len(recentOtherActors) > 0 || IsEscalation(actionType) {
		participants := []string{agentID}
		for _, other := range recentOtherActors {
			if other != agentID {
				participants = append(participants, other)
			}
		}
		newSession := entities.Session{
			DeploymentTarget:      deploymentTarget,
			ParticipatingAgentIDs: participants,
			StartTS:               now,
			IsActive:              true,
			DerivedTopic:          entities.TopicGeneralActivity,
			ActionTypeCounts:      map[string]int{},
		}
		return newSession, true, true, staleToClose
	}

	return entities.Session{}, false, false, staleToClose
}

// ApplyEvent folds one action event into session, incrementing counts and
// recomputing the derived topic.
func ApplyEvent(session entities.Session, agentID, actionType string, now time.Time) entities.Session {
	session = session.WithParticipant(agentID)
	if session.ActionTypeCounts == nil {
		session.ActionTypeCounts = map[string]int{}
	}
	session.ActionTypeCounts[actionType]++
	session.EventCount++
	session.LastEventAt = now
	session.LastEventAgentID = agentID
	session.DerivedTopic = DeriveTopic(session.ActionTypeCounts)
	if session.EndTS.Before(now) {
		session.EndTS = now
	}
	return session
}
