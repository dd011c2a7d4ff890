package errors

import "errors"

var (
	ErrInvalidThrottleFactor = errors.New("throttle_factor must be within [0, 10]")
	ErrInvalidWindow         = errors.New("window_end must be after window_start")
	ErrInvalidAvailability   = errors.New("cognition_availability must be one of full, degraded, unavailable")
	ErrStateNotFound         = errors.New("environment state not found")
	ErrLocalityNotFound      = errors.New("locality not found")
	ErrForbidden             = errors.New("forbidden")
)
