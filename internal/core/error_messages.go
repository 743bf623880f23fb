// Package core provides the query engine for the users catalog.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
//
// # Query Errors (QRY001-QRY099)
//
//	QRY001 - Invalid page: page must be 1 or greater
//	QRY002 - Invalid page size: per_page must be 1 or greater
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Empty selection: no users were selected for the backup
//	EXP002 - System busy: too many exports running at once
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Malformed request: body or parameters could not be decoded
//	REQ002 - Request cancelled
//	REQ003 - Request timed out
//
// # Load Errors (LOAD001-LOAD099)
//
// Only seen in startup logs; the server does not start after a load failure.
//
//	LOAD001 - Missing column
//	LOAD002 - Malformed row
//	LOAD003 - Empty source
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Sentinel errors are matched with errors.Is in declaration order; the first
// match wins. Pattern entries cover errors raised outside this package.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorMapping ties a sentinel error or a text pattern to a user message.
// Exactly one of target or pattern is set.
type errorMapping struct {
	target  error
	pattern string
	msg     UserMessage
}

var errorMappings = []errorMapping{
	{
		target: ErrInvalidPage,
		msg: UserMessage{
			Message: "Page must be 1 or greater",
			Action:  "Request a page number starting at 1",
			Code:    "QRY001",
		},
	},
	{
		target: ErrInvalidPerPage,
		msg: UserMessage{
			Message: "Page size must be 1 or greater",
			Action:  "Use a positive per_page value",
			Code:    "QRY002",
		},
	},
	{
		target: ErrEmptySelection,
		msg: UserMessage{
			Message: "No users selected",
			Action:  "Select at least one user before exporting",
			Code:    "EXP001",
		},
	},
	{
		target: ErrTooManyExports,
		msg: UserMessage{
			Message: "System is busy processing other exports",
			Action:  "Please wait a moment and try again",
			Code:    "EXP002",
		},
	},
	{
		target: ErrInvalidRequest,
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check the request parameters and JSON body",
			Code:    "REQ001",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try exporting fewer users or try again later",
			Code:    "REQ003",
		},
	},
	{
		target: ErrMissingColumn,
		msg: UserMessage{
			Message: "Required column is missing from the dataset",
			Action:  "Check that user_id, course_codes, num_courses, created_at and last_login are present",
			Code:    "LOAD001",
		},
	},
	{
		target: ErrInvalidRow,
		msg: UserMessage{
			Message: "The dataset contains a malformed row",
			Action:  "Fix the reported line in the source file",
			Code:    "LOAD002",
		},
	},
	{
		target: ErrEmptySource,
		msg: UserMessage{
			Message: "The dataset is empty",
			Action:  "Provide a source with a header row",
			Code:    "LOAD003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no mapping matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, a generic fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, m := range errorMappings {
		if m.target != nil && errors.Is(err, m.target) {
			return m.msg
		}
		if m.pattern != "" && strings.Contains(errStr, m.pattern) {
			return m.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// LogAttrs returns slog key/value pairs for e. The formatted user message
// is only included when err maps to a specific code.
func (e *UserError) LogAttrs() []any {
	attrs := []any{"error", e.Technical, "code", e.User.Code}
	if IsUserFacing(e.Technical) {
		attrs = append(attrs, "message", FormatUserError(e.Technical))
	}
	return attrs
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
