package core

import (
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrValidation,
		Message: "destination number is required",
	}

	expected := "validation_error: destination number is required"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrProtocol,
		Message: "unknown event type",
		Code:    "unknown_event",
	}

	expected := "protocol_error: unknown event type (code: unknown_event)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithUpstreamStatus(t *testing.T) {
	err := NewUpstreamAuthError("signed url request rejected", 401)

	expected := "upstream_auth_error: signed url request rejected (upstream status 401)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if err.UpstreamStatus != 401 {
		t.Errorf("UpstreamStatus = %d, want 401", err.UpstreamStatus)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("number is required")
	if err.Type != ErrValidation {
		t.Errorf("Type = %v, want %v", err.Type, ErrValidation)
	}
	if err.Message != "number is required" {
		t.Errorf("Message = %q, want %q", err.Message, "number is required")
	}
}

func TestNewValidationErrorWithParam(t *testing.T) {
	err := NewValidationErrorWithParam("number is required", "number")
	if err.Param != "number" {
		t.Errorf("Param = %q, want %q", err.Param, "number")
	}
}

func TestNewUpstreamUnavailableError(t *testing.T) {
	err := NewUpstreamUnavailableError("grading service unreachable")
	if err.Type != ErrUpstreamUnavailable {
		t.Errorf("Type = %v, want %v", err.Type, ErrUpstreamUnavailable)
	}
}

func TestNewParseError(t *testing.T) {
	err := NewParseError("grading response is not valid JSON")
	if err.Type != ErrParse {
		t.Errorf("Type = %v, want %v", err.Type, ErrParse)
	}
}
