package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or out-of-range input. No state is written
// when a workflow returns it.
type ValidationError struct {
	Entity  EntityType
	ID      string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid %s %s: %s: %s", e.Entity, e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Field, e.Message)
}

// NotFoundError is returned when a referenced record does not exist or is not
// in a state the operation can address.
type NotFoundError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s not found: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError reports an operation that would violate a lifecycle invariant,
// such as touching a disposed asset or allocating an asset twice.
type ConflictError struct {
	Entity   EntityType
	ID       string
	Field    string
	Expected string
	Actual   string
	Message  string
}

func (e ConflictError) Error() string {
	msg := fmt.Sprintf("%s %s conflict", e.Entity, e.ID)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (%s expected %s, got %s)", e.Field, e.Expected, e.Actual)
	}
	return msg
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps a ConflictError or a blocking rule
// violation, both of which mean the lifecycle refused the change.
func IsConflict(err error) bool {
	var conflict ConflictError
	if errors.As(err, &conflict) {
		return true
	}
	var violation RuleViolationError
	return errors.As(err, &violation)
}
