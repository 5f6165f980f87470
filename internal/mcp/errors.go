package mcp

import (
	"errors"
	"fmt"

	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/organizer"
	"github.com/saidjob/olympiad/internal/domain/session"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	cause        error
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// MapError maps domain errors to MCP error codes. Unknown errors yield nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	apiErr := func(code, msg, hint string) *APIError {
		return &APIError{Code: code, Message: msg, RecoveryHint: hint, cause: err}
	}
	switch {
	case errors.Is(err, session.ErrNotAuthorized), errors.Is(err, organizer.ErrNotAuthorized):
		return apiErr("NOT_AUTHORIZED", "caller is not an organizer", "Use a token issued for an organizer")
	case errors.Is(err, session.ErrParticipantNotFound):
		return apiErr("PARTICIPANT_NOT_FOUND", "participant not found", "Check the handle or access code with list_participants")
	case errors.Is(err, session.ErrSolutionNotFound):
		return apiErr("SOLUTION_NOT_FOUND", "no solution stored for this participant", "Check list_submissions")
	case errors.Is(err, session.ErrInvalidScore):
		return apiErr("INVALID_SCORE", "score must be a non-negative integer", "")
	case errors.Is(err, organizer.ErrInvalidID):
		return apiErr("INVALID_ORGANIZER_ID", "organizer id must be numeric", "")
	case errors.Is(err, activity.ErrInvalidInput):
		return apiErr("INVALID_INPUT", err.Error(), "")
	case errors.Is(err, session.ErrPersistence):
		return apiErr("PERSISTENCE_FAILED", "change was not saved", "Retry the call")
	case errors.Is(err, session.ErrValidation):
		return apiErr("INVALID_INPUT", err.Error(), "")
	case errors.Is(err, session.ErrStateConflict):
		return apiErr("STATE_CONFLICT", err.Error(), "")
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
