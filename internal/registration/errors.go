package registration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("registration not found")
	ErrConflict        = errors.New("registration uid already exists")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrMissingUID      = errors.New("uid is required")
	ErrNothingToUpdate = errors.New("nothing to update")
	ErrNoFileStorage   = errors.New("file storage not configured")
)

// FieldError is a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is a client-input failure; no state was changed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid submission: " + strings.Join(msgs, "; ")
}

// UploadError reports which attachment could not be stored.
type UploadError struct {
	Kind AttachmentKind
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("file upload failed for %s", e.Kind)
}

func (e *UploadError) Unwrap() error { return e.Err }

// IsClientError reports whether err was caused by caller input.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrMissingUID) ||
		errors.Is(err, ErrNothingToUpdate)
}
