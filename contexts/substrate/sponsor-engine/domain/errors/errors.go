package errors

import "errors"

var (
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrInvalidMagnitude         = errors.New("magnitude must be within [-100, 100]")
	ErrInvalidHalfLife          = errors.New("half_life_seconds must be at least 60")
	ErrSponsorCreditInsufficient = errors.New("sponsor_credit_insufficient")
	ErrPressureNotFound          = errors.New("pressure not found")
	ErrPolicyNotFound            = errors.New("policy not found")
	ErrWalletNotFound            = errors.New("sponsor wallet not found")
	ErrIdempotencyConflict       = errors.New("idempotency key conflict")
	ErrForbidden                 = errors.New("forbidden")
)
