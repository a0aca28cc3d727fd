package models

import (
	"errors"
	"fmt"
)

// Error taxonomy. Only ErrTransient is worth retrying; the rest abort the
// enclosing transaction.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrInvariant  = errors.New("invariant violation")
	ErrTransient  = errors.New("transient store error")
)

var (
	ErrParticipantNotFound  = fmt.Errorf("participant %w", ErrNotFound)
	ErrPlanNotFound         = fmt.Errorf("plan %w", ErrNotFound)
	ErrSubscriptionNotFound = fmt.Errorf("active subscription %w", ErrNotFound)

	ErrNonPositiveAmount = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrInvalidSide       = fmt.Errorf("%w: side must be left or right", ErrValidation)
	ErrSponsorSide       = fmt.Errorf("%w: side and sponsor must be set together", ErrValidation)
	ErrUsernameRequired  = fmt.Errorf("%w: username is required", ErrValidation)
	ErrSideOccupied      = fmt.Errorf("%w: sponsor side already occupied", ErrValidation)
	ErrUsernameTaken     = fmt.Errorf("%w: username already exists", ErrValidation)

	ErrCarryExceeded       = fmt.Errorf("%w: match exceeds available carry", ErrInvariant)
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrInvariant)
)

// IsRetryable reports whether err may succeed if the whole transaction is retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
