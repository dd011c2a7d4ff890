// Package sponsorengine lets sponsors purchase and allocate credits to the
// agents they fund, issue decaying influence ("pressure") over a
// deployment or a single agent, and run policy sweeps that apply
// conditional rules against agent-engine's live state.
//
// It keeps business rules in the application/domain layers and isolates
// infrastructure concerns behind ports and adapters. Reads and writes
// against agent-engine's and environment-service's tables go through the
// narrow AgentDirectory/EnvironmentDirectory ports rather than importing
// those packages' domain types.
package sponsorengine
