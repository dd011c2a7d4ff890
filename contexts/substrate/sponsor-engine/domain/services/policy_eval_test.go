package services_test

import (
	"testing"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/services"
)

func TestMatchRuleReturnsFirstMatchingRuleInOrder(t *testing.T) {
	rules := []entities.Rule{
		{
			Predicates: []entities.Predicate{{Field: "agent.balance", Op: entities.OpLt, Value: 10}},
			Action:     entities.PolicyAction{Type: entities.ActionAllocateDelta, Value: "100"},
		},
		{
			Predicates: []entities.Predicate{{Field: "agent.status", Op: entities.OpEq, Value: "active"}},
			Action:     entities.PolicyAction{Type: entities.ActionSetProvider, Value: "backup"},
		},
	}
	ctx := entities.EvaluationContext{
		Agent: map[string]any{"balance": 50, "status": "active"},
	}

	rule, matched := services.MatchRule(rules, ctx)
	if !matched {
		t.Fatalf("expected a rule to match")
	}
	if rule.Action.Type != entities.ActionSetProvider {
		t.Fatalf("expected second rule to match (first fails on balance), got action %q", rule.Action.Type)
	}
}

func TestMatchRuleReturnsFalseWhenNoRuleMatches(t *testing.T) {
	rules := []entities.Rule{
		{Predicates: []entities.Predicate{{Field: "agent.balance", Op: entities.OpLt, Value: 10}}},
	}
	ctx := entities.EvaluationContext{Agent: map[string]any{"balance": 50}}

	_, matched := services.MatchRule(rules, ctx)
	if matched {
		t.Fatalf("expected no rule to match")
	}
}

func TestMatchRuleSupportsInAndEnvFields(t *testing.T) {
	rules := []entities.Rule{
		{
			Predicates: []entities.Predicate{
				{Field: "env.cognition_availability", Op: entities.OpIn, Value: []any{"degraded", "unavailable"}},
				{Field: "agent.throttle_profile", Op: entities.OpNeq, Value: "conservative"},
			},
			Action: entities.PolicyAction{Type: entities.ActionSetProfile, Value: "conservative"},
		},
	}
	ctx := entities.EvaluationContext{
		Agent: map[string]any{"throttle_profile": "aggressive"},
		Env:   map[string]any{"cognition_availability": "degraded"},
	}

	rule, matched := services.MatchRule(rules, ctx)
	if !matched {
		t.Fatalf("expected rule to match")
	}
	if rule.Action.Value != "conservative" {
		t.Fatalf("expected conservative action value, got %q", rule.Action.Value)
	}
}

func TestMatchRuleMissingFieldDoesNotMatch(t *testing.T) {
	rules := []entities.Rule{
		{Predicates: []entities.Predicate{{Field: "agent.nonexistent", Op: entities.OpEq, Value: "x"}}},
	}
	ctx := entities.EvaluationContext{Agent: map[string]any{}}

	_, matched := services.MatchRule(rules, ctx)
	if matched {
		t.Fatalf("expected missing field to fail predicate match")
	}
}
