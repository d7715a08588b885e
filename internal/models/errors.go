package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Callers match them with errors.Is.
var (
	ErrValidation              = errors.New("validation error")
	ErrDuplicatePendingRequest = errors.New("you already have a pending request for this gig")
	ErrPreviouslyRejected      = errors.New("this song was already rejected for you at this gig")
	ErrSongAlreadyPlayed       = errors.New("song has already been played")
	ErrAlreadyLive             = errors.New("artist already has a live gig")
	ErrRequestNotFound         = errors.New("request not found")
	ErrSongNotFound            = errors.New("song not found")
	ErrGigNotFound             = errors.New("gig not found")
	ErrConcurrencyConflict     = errors.New("gig was modified concurrently")
	ErrStoreUnavailable        = errors.New("document store unavailable")

	ErrInvalidTransition = errors.New("invalid gig state transition")
	ErrRequestFinalized  = errors.New("request already resolved")
	ErrRequestsDisabled  = errors.New("requests are disabled for this gig")
	ErrOutOfRange        = errors.New("too far from the venue")
	ErrAlreadyVoted      = errors.New("already voted for this song")
	ErrNotGigOwner       = errors.New("only the gig's artist can perform this action")
	ErrGigNotLive        = errors.New("gig is not live")
)

// ValidationError reports malformed input before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError names the status a lifecycle call was rejected from.
type TransitionError struct {
	Op   string
	From GigStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a gig that is %s", e.Op, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
