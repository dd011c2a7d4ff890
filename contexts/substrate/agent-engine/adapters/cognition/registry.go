// Package cognition provides the Agent Action Engine's CognitionProvider
// registry and the "none" sentinel provider every unsponsored agent
// defaults to.
package cognition

import (
	"context"

	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	"oxsubstrate/contexts/substrate/agent-engine/ports"
)

// NoneProvider never estimates or executes cognition; the attempt pipeline
// skips both calls for agents configured with CognitionProvider "none", so
// this type exists only to satisfy a registry lookup that falls through to
// it by mistake.
type NoneProvider struct{}

func (NoneProvider) EstimateCost(ctx context.Context, payload, agentContext map[string]any) (int, error) {
	return 0, nil
}

func (NoneProvider) Execute(ctx context.Context, payload, agentContext map[string]any) (entities.CognitionResult, error) {
	return entities.CognitionResult{Provider: "none"}, nil
}

// Registry is a static, in-process map from provider name to
// implementation, populated at bootstrap from configuration.
type Registry struct {
	providers map[string]ports.CognitionProvider
}

// NewRegistry builds a Registry seeded with the given providers plus the
// built-in "none" entry.
func NewRegistry(providers map[string]ports.CognitionProvider) Registry {
	all := make(map[string]ports.CognitionProvider, len(providers)+1)
	for name, p := range providers {
		all[name] = p
	}
	all["none"] = NoneProvider{}
	return Registry{providers: all}
}

// Resolve returns the provider registered under name, or NoneProvider if no
// such provider was configured. An agent referencing an unconfigured
// provider degrades to "none" rather than failing every attempt.
func (r Registry) Resolve(provider string) ports.CognitionProvider {
	if p, ok := r.providers[provider]; ok {
		return p
	}
	return NoneProvider{}
}
