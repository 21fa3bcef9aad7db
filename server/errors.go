package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/session"
	"github.com/uxsense/backend/wizard"
)

const (
	busyMessage            = "An operation is already in progress. Please wait."
	unauthenticatedMessage = "Please sign in first."
	noResultMessage        = "Run an analysis first."
	lockedStepMessage      = "Run an analysis first to unlock this step."
)

// statusFor maps an error to the HTTP status returned for it
func statusFor(err error) int {
	var validationErr *analyzer.ValidationError
	var analysisErr *analyzer.AnalysisError
	var transitionErr *wizard.InvalidTransitionError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrBusy), errors.As(err, &transitionErr):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoResult):
		return http.StatusNotFound
	case errors.As(err, &analysisErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the single human-readable message shown for err
func messageFor(err error) string {
	var transitionErr *wizard.InvalidTransitionError

	switch {
	case errors.Is(err, session.ErrBusy):
		return busyMessage
	case errors.Is(err, session.ErrUnauthenticated):
		return unauthenticatedMessage
	case errors.Is(err, session.ErrNoResult):
		return noResultMessage
	case errors.As(err, &transitionErr):
		return lockedStepMessage
	default:
		return analyzer.UserMessage(err)
	}
}
