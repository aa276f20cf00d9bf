package core

// error_messages.go maps errors to user-facing messages with codes for
// support reference.
//
// Codes by category:
//
//	VAL001 - Missing field: a required field is absent from the record
//	VAL002 - Invalid value: a field failed its validator
//	VAL003 - Unknown field: an update names a field that does not exist
//	VAL004 - Empty update: an update carries no fields
//	PAT001 - Not found: no patient with this identifier
//	PAT002 - Duplicate identifier: patient_id already taken (retryable)
//	LOAD001 - Load in progress: another bulk load owns the store
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Missing columns in the CSV header
//	DB001 - Store unavailable
//	DB002 - Timeout
//	ERR000 - Anything else; check the logs for the technical error
//
// Typed errors from this package are matched with errors.Is first. Errors
// raised by drivers are then matched by substring, case-insensitively; the
// first matching pattern wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Detail  string // Which field or record, when known
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds maps the sentinel errors of this package to user messages.
var errorKinds = []errorKind{
	{ErrMissingField, UserMessage{
		Message: "A required field is missing",
		Action:  "Provide all 15 patient fields",
		Code:    "VAL001",
	}},
	{ErrInvalidFieldValue, UserMessage{
		Message: "A field has an invalid value",
		Action:  "Correct the value and try again",
		Code:    "VAL002",
	}},
	{ErrUnknownField, UserMessage{
		Message: "Unknown field name",
		Action:  "Use one of the patient field names",
		Code:    "VAL003",
	}},
	{ErrEmptyUpdate, UserMessage{
		Message: "No fields to update",
		Action:  "Supply at least one field to change",
		Code:    "VAL004",
	}},
	{ErrNotFound, UserMessage{
		Message: "Patient not found",
		Action:  "Check the patient identifier",
		Code:    "PAT001",
	}},
	{ErrDuplicateIdentifier, UserMessage{
		Message: "Patient not added, patient_id already exists",
		Action:  "Try again",
		Code:    "PAT002",
	}},
	{ErrLoadInProgress, UserMessage{
		Message: "A bulk load is already running",
		Action:  "Wait for it to finish and try again",
		Code:    "LOAD001",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{ErrInvalidCSV, UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with consistent columns",
		Code:    "FILE002",
	}},
	{ErrMissingColumns, UserMessage{
		Message: "Required columns are missing from the CSV",
		Action:  "Check that all 15 patient columns are present",
		Code:    "FILE003",
	}},
	{ErrStoreUnavailable, UserMessage{
		Message: "Unable to reach the patient store",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
}

// Errors shared with the ingest layer.
var (
	ErrFileTooLarge   = errors.New("file too large")
	ErrInvalidCSV     = errors.New("invalid csv")
	ErrMissingColumns = errors.New("missing required columns")
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches driver errors that were not wrapped in a sentinel.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "Patient not added, patient_id already exists", Action: "Try again", Code: "PAT002"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to reach the patient store", Action: "Please try again in a few moments", Code: "DB001"},
	},
	{
		pattern: "server selection error",
		msg:     UserMessage{Message: "Unable to reach the patient store", Action: "Please try again in a few moments", Code: "DB001"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Operation timed out", Action: "Try again later", Code: "DB002"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Operation timed out", Action: "Try again later", Code: "DB002"},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. Validation errors
// carry the offending field in Detail.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			msg := k.msg
			var ve *ValidationError
			if errors.As(err, &ve) {
				msg.Detail = err.Error()
			}
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err for display:
// "Message: detail (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if msg.Detail != "" {
		return fmt.Sprintf("%s: %s (Code: %s). %s", msg.Message, msg.Detail, msg.Code, msg.Action)
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// IsRetryable reports whether repeating the operation may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDuplicateIdentifier) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrLoadInProgress)
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original error for logging
	User      UserMessage // Message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with its mapped message. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
