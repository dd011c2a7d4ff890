package errors

import "errors"

var (
	ErrInvalidActionType    = errors.New("invalid_action_type")
	ErrInvalidCost          = errors.New("requested_cost must be a non-negative number")
	ErrMissingSubjectAgent  = errors.New("subject_agent_id is required for implicating action types")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrAgentUnavailable     = errors.New("agent is not active")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrForbidden            = errors.New("forbidden")
	ErrIdempotencyConflict  = errors.New("idempotency key conflict")
)
