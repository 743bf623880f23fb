package core

import (
	"errors"
	"fmt"
)

// Constraint violations on the page spec. Both are rejected before any
// pagination arithmetic runs.
var (
	ErrInvalidPage    = errors.New("invalid page: must be 1 or greater")
	ErrInvalidPerPage = errors.New("invalid per_page: must be 1 or greater")
)

// ErrEmptySelection is returned when an export is requested without user ids.
var ErrEmptySelection = errors.New("no users selected")

// ErrInvalidRequest marks a request whose body or parameters could not be decoded.
var ErrInvalidRequest = errors.New("invalid request")

// Load failures. The process must not start serving when any of these occur.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrInvalidRow    = errors.New("invalid row")
	ErrEmptySource   = errors.New("empty source")
)

// RowError reports a malformed row of the source table.
// Line is 1-based and counts the header as line 1.
type RowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s=%q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() []error {
	return []error{ErrInvalidRow, e.Err}
}

// IsConstraintViolation reports whether err is a rejected page spec.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrInvalidPage) || errors.Is(err, ErrInvalidPerPage)
}
