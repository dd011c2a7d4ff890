// Package events defines the wire envelope shared by every bounded context
// that appends to the event log and every consumer that reads from it.
package events

import (
	"encoding/json"
	"time"
)

// MaxPayloadBytes is the hard cap on a serialized payload. Anything larger
// is truncated before persistence so a single agent action cannot become a
// self-inflicted storage or broker payload bomb.
const MaxPayloadBytes = 16 * 1024

const truncatedMarker = "...[TRUNCATED]"

// Envelope is the canonical event shape persisted in the event log and
// published to the bus. Field names follow the wire contract in spec §6.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	ActorID        string          `json:"actor_id"`
	ActorGen       int             `json:"actor_generation,omitempty"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Context        json.RawMessage `json:"context,omitempty"`
	Truncated      bool            `json:"truncated,omitempty"`
}

// Topic names the bus destinations events are published to.
const (
	TopicAgents  = "events.agents.v1"
	TopicPhysics = "events.ox-physics.v1"
)

// Build constructs an envelope with a bounded, marshalled payload.
// An oversized payload is truncated with a trailing marker rather than
// rejected outright.
func Build(id, eventType string, occurredAt time.Time, actorID, correlationID, idempotencyKey string, payload, context any) (Envelope, error) {
	payloadBytes, truncated, err := marshalBounded(payload)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{
		EventID:        id,
		EventType:      eventType,
		OccurredAt:     occurredAt.UTC(),
		ActorID:        actorID,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		Payload:        payloadBytes,
		Truncated:      truncated,
	}
	if context != nil {
		contextBytes, err := json.Marshal(context)
		if err != nil {
			return Envelope{}, err
		}
		env.Context = contextBytes
	}
	return env, nil
}

// marshalBounded marshals v and truncates the result to MaxPayloadBytes,
// tagging the output so consumers can tell a payload was clipped.
func marshalBounded(v any) (json.RawMessage, bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	if len(raw) <= MaxPayloadBytes {
		return raw, false, nil
	}
	// Truncate the raw serialized form and wrap it as a string payload so the
	// result stays valid JSON even though it no longer round-trips to the
	// original shape. Consumers must treat a truncated payload as opaque.
	cut := MaxPayloadBytes - len(truncatedMarker)
	for {
		wrapped, err := json.Marshal(struct {
			Truncated bool   `json:"truncated"`
			Raw       string `json:"raw"`
		}{
			Truncated: true,
			Raw:       string(raw[:cut]) + truncatedMarker,
		})
		if err != nil {
			return nil, false, err
		}
		// The wrapper object and JSON string escaping add bytes; clip further
		// until the wrapped form itself fits within MaxPayloadBytes.
		if over := len(wrapped) - MaxPayloadBytes; over > 0 && cut > 0 {
			cut -= min(over, cut)
			continue
		}
		return wrapped, true, nil
	}
}
