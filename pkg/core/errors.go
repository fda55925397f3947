package core

import (
	"fmt"
)

// Error is the canonical error carried across the call-bridge pipeline.
type Error struct {
	Type           ErrorType `json:"type"`
	Message        string    `json:"message"`
	Param          string    `json:"param,omitempty"`
	Code           string    `json:"code,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	UpstreamStatus int       `json:"upstream_status,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.UpstreamStatus != 0 {
		return fmt.Sprintf("%s: %s (upstream status %d)", e.Type, e.Message, e.UpstreamStatus)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrValidation: bad caller input; no external call was attempted.
	ErrValidation ErrorType = "validation_error"
	// ErrUpstreamAuth: credential or configuration failure against the
	// voice-AI or telephony service.
	ErrUpstreamAuth ErrorType = "upstream_auth_error"
	// ErrUpstreamUnavailable: network failure or 5xx from an external service.
	ErrUpstreamUnavailable ErrorType = "upstream_unavailable_error"
	// ErrParse: a grading response that is not valid JSON for the schema.
	ErrParse ErrorType = "parse_error"
	// ErrProtocol: unexpected frame or event shape from telephony or voice AI.
	ErrProtocol ErrorType = "protocol_error"
)

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
	}
}

// NewValidationErrorWithParam creates a validation error with a parameter.
func NewValidationErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
		Param:   param,
	}
}

// NewUpstreamAuthError creates an upstream auth error carrying the upstream status.
func NewUpstreamAuthError(message string, upstreamStatus int) *Error {
	return &Error{
		Type:           ErrUpstreamAuth,
		Message:        message,
		UpstreamStatus: upstreamStatus,
	}
}

// NewUpstreamUnavailableError creates an upstream unavailable error.
func NewUpstreamUnavailableError(message string) *Error {
	return &Error{
		Type:    ErrUpstreamUnavailable,
		Message: message,
	}
}

// NewParseError creates a parse error.
func NewParseError(message string) *Error {
	return &Error{
		Type:    ErrParse,
		Message: message,
	}
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string) *Error {
	return &Error{
		Type:    ErrProtocol,
		Message: message,
	}
}
