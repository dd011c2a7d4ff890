// Package projection is the Projection Materializer: a consumer-group
// subscriber over the agent and physics topics that folds every envelope
// emitted by agent-engine, environment-service, and sponsor-engine into the
// read-model tables the read API serves — live events, sessions, agent
// patterns, artifacts and their implications, the capacity timeline,
// environment history/rejections, and narrative frames.
//
// Every write here is derived, never authoritative, and every table carries
// the source event's id so at-least-once delivery from the outbox
// dispatcher never duplicates a row. It keeps business rules in the
// application/domain layers and isolates infrastructure concerns behind
// ports and adapters, same as the other substrate contexts.
package projection
