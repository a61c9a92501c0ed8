package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrCapacity      = errors.New("capacity exceeded")
	ErrTimeout       = errors.New("timeout")
	ErrExternal      = errors.New("external failure")
	ErrNotFound      = errors.New("not found")
	ErrPermission    = errors.New("permission denied")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// CapacityError reports that the transform queue is saturated. Position is the
// 1-based place the caller would have taken.
type CapacityError struct {
	Position int
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: queue full (position %d, limit %d)", ErrCapacity, e.Position, e.Limit)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// Kind returns a stable label for the error class, used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternal):
		return "external"
	default:
		return "unknown"
	}
}

// UserMessage renders err for a Discord user. Validation messages are passed
// through because they are user-correctable; everything unrecognised degrades
// to a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var capErr *CapacityError
	switch {
	case errors.As(err, &capErr):
		return fmt.Sprintf("The processing queue is full (you would be #%d). Please try again later.", capErr.Position)
	case errors.Is(err, ErrValidation):
		return userDetail(err, "That submission is not valid.")
	case errors.Is(err, ErrPermission):
		return "You don't have the necessary permissions for this command."
	case errors.Is(err, ErrNotFound):
		return userDetail(err, "That item could not be found.")
	case errors.Is(err, ErrTimeout):
		return "The operation took too long and timed out."
	case errors.Is(err, ErrConfiguration):
		return userDetail(err, "The bot is not configured yet. Ask an admin to run /setup.")
	case errors.Is(err, ErrExternal):
		return "Processing failed. Please try again later."
	default:
		return "An error occurred."
	}
}

// userDetail extracts the message segment written by Wrap, falling back when
// none is present.
func userDetail(err error, fallback string) string {
	var detailed *DetailError
	if errors.As(err, &detailed) && strings.TrimSpace(detailed.Message) != "" {
		return detailed.Message
	}
	return fallback
}

// DetailError carries a message that is safe to show to end users.
type DetailError struct {
	Message string
	Err     error
}

func (e *DetailError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *DetailError) Unwrap() error { return e.Err }

// UserError tags err with marker and a user-facing message.
func UserError(marker error, message string) error {
	return &DetailError{Message: message, Err: marker}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Describe attaches a user-facing message to an already classified error.
func Describe(message string, err error) error {
	if err == nil {
		return nil
	}
	return &DetailError{Message: message, Err: err}
}
