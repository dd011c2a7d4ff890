package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/application"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/services"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"
	"oxsubstrate/internal/shared/events"
)

// PolicySweeper evaluates due sponsor policies against each owning
// sponsor's agents (spec §4.4 policy sweep). It runs on its own cadence
// (recommended ≥ 60s) and is reentrant-safe: application of a matched rule
// is keyed by (policy_id, tick_id, agent_id), so overlapping runs across
// replicas never double-apply an action.
//
// Cross-replica mutual exclusion beyond that idempotency key (a leader
// lease so only one replica evaluates a given policy per tick) is left
// unimplemented in this single-process deployment; see DESIGN.md.
type PolicySweeper struct {
	Repo        ports.Repository
	Agents      ports.AgentDirectory
	Environment ports.EnvironmentDirectory
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (s PolicySweeper) logger() *slog.Logger { return application.ResolveLogger(s.Logger) }

func (s PolicySweeper) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now().UTC()
}

// RunOnce evaluates every due policy's rule list against each of its
// sponsor's agents, applying the first matching rule's action.
func (s PolicySweeper) RunOnce(ctx context.Context) error {
	logger := s.logger()
	now := s.now()
	tickID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}

	policies, err := s.Repo.ListDuePolicies(ctx, now)
	if err != nil {
		logger.Error("policy sweep list failed",
			"event", "sponsor_policy_sweep_list_failed",
			"module", "sponsor-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(policies) == 0 {
		return nil
	}

	for _, policy := range policies {
		if err := s.runPolicy(ctx, policy, tickID, now); err != nil {
			logger.Error("policy sweep run failed",
				"event", "sponsor_policy_sweep_run_failed",
				"module", "sponsor-engine",
				"layer", "worker",
				"policy_id", policy.ID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("policy sweep cycle completed",
		"event", "sponsor_policy_sweep_completed",
		"module", "sponsor-engine",
		"layer", "worker",
		"tick_id", tickID,
		"policy_count", len(policies),
	)
	return nil
}

func (s PolicySweeper) runPolicy(ctx context.Context, policy entities.Policy, tickID string, now time.Time) error {
	agents, err := s.Agents.ListAgentsBySponsor(ctx, strings.TrimSpace(policy.SponsorID))
	if err != nil {
		return err
	}

	for _, agent := range agents {
		outcome, reason, diff, err := s.evaluateAndApply(ctx, policy, agent)
		if err != nil {
			return err
		}
		log := entities.PolicyRunLog{
			PolicyID:  policy.ID,
			TickID:    tickID,
			AgentID:   agent.AgentID,
			Outcome:   outcome,
			Reason:    reason,
			Applied:   outcome == entities.RunApplied,
			Diff:      diff,
			CreatedAt: now,
		}
		inserted, err := s.Repo.AppendPolicyRunLog(ctx, log)
		if err != nil {
			return err
		}
		if !inserted {
			continue // already recorded for this (policy, tick, agent) by another replica
		}
		if err := s.emitRunEvent(ctx, policy, log); err != nil {
			return err
		}
	}
	return s.Repo.MarkPolicyRan(ctx, policy.ID, now)
}

func (s PolicySweeper) evaluateAndApply(ctx context.Context, policy entities.Policy, agent ports.AgentView) (entities.RunOutcome, string, map[string]any, error) {
	envCtx := map[string]any{}
	if s.Environment != nil {
		if view, found, err := s.Environment.GetEnvironmentView(ctx, agent.DeploymentTarget); err == nil && found {
			envCtx["cognition_availability"] = view.CognitionAvailability
			envCtx["throttle_factor"] = view.ThrottleFactor
		}
	}
	evalCtx := entities.EvaluationContext{
		Agent: map[string]any{
			"status":             agent.Status,
			"balance":            agent.Balance,
			"cognition_provider": agent.CognitionProvider,
			"throttle_profile":   agent.ThrottleProfile,
		},
		Env: envCtx,
	}

	rule, matched := services.MatchRule(policy.Rules, evalCtx)
	if !matched {
		return entities.RunSkipped, "no_rule_matched", nil, nil
	}

	diff, err := s.Agents.ApplyPolicyAction(ctx, agent.AgentID, rule.Action)
	if err != nil {
		return entities.RunSkipped, err.Error(), nil, nil
	}
	return entities.RunApplied, string(rule.Action.Type), diff, nil
}

func (s PolicySweeper) emitRunEvent(ctx context.Context, policy entities.Policy, log entities.PolicyRunLog) error {
	eventType := "agent.sponsor_policy_applied"
	if log.Outcome == entities.RunSkipped {
		eventType = "agent.sponsor_policy_skipped"
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"policy_id": policy.ID,
		"tick_id":   log.TickID,
		"agent_id":  log.AgentID,
		"reason":    log.Reason,
		"diff":      log.Diff,
	}
	env, err := events.Build(eventID, eventType, log.CreatedAt, log.AgentID, "", "", payload, nil)
	if err != nil {
		return err
	}
	if err := s.Repo.AppendEvent(ctx, env); err != nil {
		return err
	}
	envelopeBytes, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Repo.AppendOutbox(ctx, env.EventID, events.TopicAgents, envelopeBytes)
}
