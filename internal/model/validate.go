package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateCard checks a Card for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the card is valid.
func ValidateCard(c *Card) error {
	var ve ValidationError

	// Name: required and at most 500 characters.
	name := strings.TrimSpace(c.Name)
	if name == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	} else if len([]rune(name)) > 500 {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "must be 500 characters or fewer"})
	}

	// Type: must be non-empty (card types are extensible).
	if strings.TrimSpace(string(c.Type)) == "" {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "type",
			Message: "is required",
		})
	}

	// Status: must be a valid enum value (closed set).
	if !c.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", c.Status),
		})
	}

	// Lifecycle: must be a known phase when set.
	if !c.Lifecycle.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "lifecycle",
			Message: fmt.Sprintf("invalid value %q", c.Lifecycle),
		})
	}

	// Completion: bounded score.
	if c.Completion < 0 || c.Completion > 100 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "completion",
			Message: fmt.Sprintf("must be between 0 and 100, got %g", c.Completion),
		})
	}

	// ArchivedAt consistency with Status.
	if c.Status == StatusArchived && c.ArchivedAt == nil {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "archived_at",
			Message: "is required when status is archived",
		})
	}
	if c.Status != StatusArchived && c.ArchivedAt != nil {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "archived_at",
			Message: "must be nil when status is not archived",
		})
	}

	// Attributes: must be valid JSON if present.
	if len(c.Attributes) > 0 && !json.Valid(c.Attributes) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "attributes",
			Message: "contains invalid JSON",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateRelation checks a Relation for constraint violations.
func ValidateRelation(r *Relation) error {
	var ve ValidationError

	if strings.TrimSpace(string(r.Type)) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "type", Message: "is required"})
	}
	if r.SourceID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "source_id", Message: "is required"})
	}
	if r.TargetID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "target_id", Message: "is required"})
	}
	if r.SourceID != "" && r.SourceID == r.TargetID {
		ve.Errors = append(ve.Errors, FieldError{Field: "target_id", Message: "must differ from source_id"})
	}
	if len(r.Attributes) > 0 && !json.Valid(r.Attributes) {
		ve.Errors = append(ve.Errors, FieldError{Field: "attributes", Message: "contains invalid JSON"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
