// Package agentengine implements the Agent Action Engine inside the
// substrate context.
//
// The module owns the admission pipeline that gates every agent action
// against environment physics, throttle profile, and capacity balance, then
// records the decision as an append-only action log plus an event/outbox
// pair. It keeps business rules in application/domain layers and isolates
// infrastructure concerns behind ports and adapters.
package agentengine
