package session

import "errors"

// Error categories. Every specific error below matches exactly one of them
// through errors.Is.
var (
	// ErrValidation marks bad input: wrong secret, wrong code, bad format.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization marks a privileged call from a non-organizer.
	ErrAuthorization = errors.New("authorization error")
	// ErrStateConflict marks a transition that is not allowed from the current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrPersistence marks a failed durable write. The transition was not committed.
	ErrPersistence = errors.New("persistence error")
	// ErrRecipientUnreachable is reported by notifiers when the participant
	// cannot be contacted (blocked the bot, deleted the account).
	ErrRecipientUnreachable = errors.New("recipient unreachable")
)

var (
	// ErrInvalidSecret indicates the registration secret did not match.
	ErrInvalidSecret = categorized(ErrValidation, "invalid registration secret")
	// ErrCodeMismatch indicates the supplied access code is wrong.
	ErrCodeMismatch = categorized(ErrValidation, "access code mismatch")
	// ErrUnsupportedFormat indicates the submitted file has a rejected extension.
	ErrUnsupportedFormat = categorized(ErrValidation, "unsupported artifact format")
	// ErrInvalidScore indicates a negative score.
	ErrInvalidScore = categorized(ErrValidation, "invalid score")
	// ErrInvalidParticipant indicates an empty participant identifier.
	ErrInvalidParticipant = categorized(ErrValidation, "invalid participant identifier")

	// ErrNotAuthorized indicates the caller is not an organizer.
	ErrNotAuthorized = categorized(ErrAuthorization, "not authorized")

	// ErrAlreadyRegistered indicates the participant is already registered.
	ErrAlreadyRegistered = categorized(ErrStateConflict, "already registered")
	// ErrNotRegistered indicates the participant has not registered yet.
	ErrNotRegistered = categorized(ErrStateConflict, "not registered")
	// ErrAlreadySubmitted indicates a solution was already accepted for this cycle.
	ErrAlreadySubmitted = categorized(ErrStateConflict, "solution already submitted")
	// ErrTimerNotActive indicates there is no open solution window.
	ErrTimerNotActive = categorized(ErrStateConflict, "no open solution window")
	// ErrTimerActive indicates a solution window is already open.
	ErrTimerActive = categorized(ErrStateConflict, "solution window already open")
	// ErrDeadlineExceeded indicates the solution window has closed.
	ErrDeadlineExceeded = categorized(ErrStateConflict, "solution deadline exceeded")
	// ErrOutsideEventPeriod indicates the olympiad is not running right now.
	ErrOutsideEventPeriod = categorized(ErrStateConflict, "outside the event period")
	// ErrParticipantNotFound indicates no record exists for the identifier.
	ErrParticipantNotFound = categorized(ErrStateConflict, "participant not found")
	// ErrSolutionNotFound indicates no stored solution matches the request.
	ErrSolutionNotFound = categorized(ErrStateConflict, "solution not found")
	// ErrCodeSpaceExhausted indicates no free access code could be drawn.
	ErrCodeSpaceExhausted = categorized(ErrStateConflict, "access code space exhausted")
)

type categorizedError struct {
	category error
	msg      string
}

func categorized(category error, msg string) error {
	return &categorizedError{category: category, msg: msg}
}

func (e *categorizedError) Error() string {
	return e.msg
}

func (e *categorizedError) Is(target error) bool {
	return target == e.category
}
