// Package readapi is the Read API: the role-gated query surface over the
// projection materializer's tables (GET /ox/live, /ox/sessions,
// /ox/artifacts, /ox/agents/:id/perceived-by, and the auditor-only
// /ox/observe diagnostic view), plus the ops-gated dead-letter re-drive
// admin endpoint.
//
// Every request resolves an ObserverRole from x-observer-role (defaulting
// to viewer), enforces the endpoint's minimum role and per-(endpoint,
// observer) rate limit, and writes an access-log row for every request it
// serves or denies; a request whose projection read fails after the gate
// returns its error without one. It never imports the projection materializer's domain types,
// querying its tables directly instead, the same cross-context read
// pattern the other substrate contexts use for each other's data.
package readapi
