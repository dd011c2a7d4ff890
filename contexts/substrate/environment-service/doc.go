// Package environmentservice owns the physics constraints consulted by the
// Agent Action Engine's environment gate: cognition availability,
// throughput caps, active windows, and throttle factors per deployment
// target, plus a locality topology (localities and weighted agent
// memberships) that it stores and lists; no other context reads it.
//
// It keeps business rules in the application/domain layers and isolates
// infrastructure concerns behind ports and adapters. Other contexts read
// its tables directly as read-only projections rather than importing this
// package's domain types.
package environmentservice
