// Package services holds pure decision logic kept outside the application
// use cases so it is unit-testable without a repository: policy rule
// matching and braid composition's interference math.
package services

import (
	"fmt"
	"strconv"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
)

// MatchRule reports whether every predicate in rule matches ctx, and the
// first rule in rules (in order) that matches, if any.
func MatchRule(rules []entities.Rule, ctx entities.EvaluationContext) (entities.Rule, bool) {
	for _, rule := range rules {
		if matchesAll(rule.Predicates, ctx) {
			return rule, true
		}
	}
	return entities.Rule{}, false
}

func matchesAll(predicates []entities.Predicate, ctx entities.EvaluationContext) bool {
	for _, predicate := range predicates {
		if !matchesOne(predicate, ctx) {
			return false
		}
	}
	return true
}

func matchesOne(predicate entities.Predicate, ctx entities.EvaluationContext) bool {
	actual, ok := resolveField(predicate.Field, ctx)
	if !ok {
		return false
	}
	switch predicate.Op {
	case entities.OpEq:
		return compareEqual(actual, predicate.Value)
	case entities.OpNeq:
		return !compareEqual(actual, predicate.Value)
	case entities.OpGt:
		cmp, ok := compareNumeric(actual, predicate.Value)
		return ok && cmp > 0
	case entities.OpGte:
		cmp, ok := compareNumeric(actual, predicate.Value)
		return ok && cmp >= 0
	case entities.OpLt:
		cmp, ok := compareNumeric(actual, predicate.Value)
		return ok && cmp < 0
	case entities.OpLte:
		cmp, ok := compareNumeric(actual, predicate.Value)
		return ok && cmp <= 0
	case entities.OpIn:
		return containsValue(predicate.Value, actual)
	case entities.OpNotIn:
		return !containsValue(predicate.Value, actual)
	default:
		return false
	}
}

// resolveField resolves a two-segment dotted path ("agent.balance",
// "env.throttle_factor") against the evaluation context's two maps.
func resolveField(field string, ctx entities.EvaluationContext) (any, bool) {
	root, key, found := splitDotted(field)
	if !found {
		return nil, false
	}
	switch root {
	case "agent":
		v, ok := ctx.Agent[key]
		return v, ok
	case "env":
		v, ok := ctx.Env[key]
		return v, ok
	default:
		return nil, false
	}
}

func splitDotted(field string) (root, key string, ok bool) {
	for i, r := range field {
		if r == '.' {
			return field[:i], field[i+1:], true
		}
	}
	return "", "", false
}

func compareEqual(actual, expected any) bool {
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func compareNumeric(actual, expected any) (int, bool) {
	a, aok := toFloat(actual)
	b, bok := toFloat(expected)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func containsValue(set any, actual any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareEqual(actual, item) {
			return true
		}
	}
	return false
}
