package errors

import "errors"

var (
	ErrForbidden       = errors.New("observer role does not meet endpoint minimum")
	ErrRateLimited     = errors.New("rate limit exceeded for endpoint")
	ErrOpsForbidden    = errors.New("ops role required for admin endpoint")
	ErrAlreadyRedriven = errors.New("dead letter already redriven")
	ErrNotFound        = errors.New("dead letter not found")
)
