package analyzer

import (
	"errors"
	"fmt"
)

// analysisFailedMessage is what the user sees for any provider-side failure
const analysisFailedMessage = "Analysis failed. Check your provider configuration."

// ValidationError reports missing or out-of-range user input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AnalysisError reports a failed provider call or an unusable response
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Err)
	}
	return "analysis failed: " + e.Reason
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// TransportError wraps a network or provider API failure
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage turns any error into the single string shown to the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisFailedMessage
	}

	return err.Error()
}
