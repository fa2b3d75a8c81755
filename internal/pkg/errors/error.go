// Package xerrors holds the sentinel errors shared by services and handlers.
// Callers wrap them with fmt.Errorf("...: %w") and test with Is.
package xerrors

import "errors"

// Generic request and storage failures.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict: resource already exists")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrRateLimited    = errors.New("too many requests")
	ErrInternal       = errors.New("internal server error")
)

// Agent lifecycle failures.
var (
	ErrAlreadyVerified     = errors.New("agent is already verified")
	ErrNotVerified         = errors.New("agent is not verified")
	ErrInvalidTransition   = errors.New("invalid verification status transition")
	ErrAlreadyReferred     = errors.New("agent has already used a referral code")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("cannot use your own referral code")
)

// Contention. ErrReferralCodeTaken and ErrConcurrentModification are retried
// internally; callers only see them once the attempts are used up.
var (
	ErrReferralCodeTaken       = errors.New("referral code already taken")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique referral code")
	ErrConcurrentModification  = errors.New("account was modified concurrently")
)

func Is(err, target error) bool { return errors.Is(err, target) }
