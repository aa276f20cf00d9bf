package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every error returned by the repository wraps one of these
// so callers can branch with errors.Is.
var (
	ErrMissingField        = errors.New("missing field")
	ErrInvalidFieldValue   = errors.New("invalid field value")
	ErrUnknownField        = errors.New("unknown field")
	ErrNotFound            = errors.New("patient not found")
	ErrDuplicateIdentifier = errors.New("duplicate patient_id")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrLoadInProgress      = errors.New("bulk load already in progress")
)

// ValidationError represents a rejection of a single field.
type ValidationError struct {
	Field   string // External field name
	Value   string // The offending value, if any
	Message string // Human-readable reason
	Kind    error  // ErrMissingField, ErrInvalidFieldValue or ErrUnknownField
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrMissingField:
		return fmt.Sprintf("missing field %q", e.Field)
	case ErrUnknownField:
		return fmt.Sprintf("unknown field %q", e.Field)
	}
	if e.Message == "" {
		return fmt.Sprintf("invalid value for %q", e.Field)
	}
	return fmt.Sprintf("invalid value for %q: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match the error kind.
func (e *ValidationError) Unwrap() error { return e.Kind }

// ValidationErrors is returned by a Validator configured to accumulate.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (es ValidationErrors) Unwrap() []error {
	errs := make([]error, len(es))
	for i, e := range es {
		errs[i] = e
	}
	return errs
}

// RejectedField returns the name of the first rejected field in err, or "".
func RejectedField(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func missingField(name string) *ValidationError {
	return &ValidationError{Field: name, Kind: ErrMissingField}
}

func unknownField(name string) *ValidationError {
	return &ValidationError{Field: name, Kind: ErrUnknownField}
}

func invalidField(name string, raw any, cause error) *ValidationError {
	value, _ := rawString(raw)
	if value == "" && raw != nil {
		value = fmt.Sprintf("%v", raw)
	}
	return &ValidationError{
		Field:   name,
		Value:   value,
		Message: cause.Error(),
		Kind:    ErrInvalidFieldValue,
	}
}
