package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"guessrank/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternal, "transform", "encode", "ffmpeg failed", base)
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transform", "encode", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{services.Wrap(services.ErrValidation, "intake", "validate", "bad", nil), "validation"},
		{&services.CapacityError{Position: 4, Limit: 3}, "capacity"},
		{services.Wrap(services.ErrTimeout, "gateway", "transform", "", nil), "timeout"},
		{services.Wrap(services.ErrNotFound, "voting", "cast", "", nil), "not_found"},
		{services.Wrap(services.ErrPermission, "api", "setup", "", nil), "permission"},
		{services.Wrap(services.ErrConfiguration, "intake", "select guild", "", nil), "configuration"},
		{services.Wrap(services.ErrExternal, "upload", "post", "", nil), "external"},
		{errors.New("mystery"), "unknown"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUserMessagePassesThroughValidationDetail(t *testing.T) {
	err := fmt.Errorf("stage: %w", services.UserError(services.ErrValidation, "Video too large (120.0MB)!"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if got := services.UserMessage(err); got != "Video too large (120.0MB)!" {
		t.Fatalf("unexpected user message %q", got)
	}
}

func TestUserMessageDegradesUnknownErrors(t *testing.T) {
	if got := services.UserMessage(errors.New("sql: connection reset")); got != "An error occurred." {
		t.Fatalf("expected generic message, got %q", got)
	}
	capErr := &services.CapacityError{Position: 7, Limit: 5}
	if got := services.UserMessage(capErr); !strings.Contains(got, "#7") {
		t.Fatalf("expected position in capacity message, got %q", got)
	}
}
