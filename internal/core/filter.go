package core

import (
	"sort"
	"strings"
)

// courseDelimiter separates course codes inside the course_codes column.
const courseDelimiter = ", "

// FilterSpec is the set of course tokens selected by a query.
// The zero value selects nothing and therefore filters nothing.
type FilterSpec struct {
	noCourse bool
	courses  map[string]struct{}
}

// NewFilterSpec builds a FilterSpec from tokens. Tokens are trimmed, empty
// ones are dropped and duplicates collapse.
func NewFilterSpec(tokens ...string) FilterSpec {
	var spec FilterSpec
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if tok == NoCourseMarker {
			spec.noCourse = true
			continue
		}
		if spec.courses == nil {
			spec.courses = make(map[string]struct{})
		}
		spec.courses[tok] = struct{}{}
	}
	return spec
}

// ParseFilterSpec parses a comma-separated token list such as
// "MATH101,Sin curso". An empty string yields an empty spec.
func ParseFilterSpec(param string) FilterSpec {
	if strings.TrimSpace(param) == "" {
		return FilterSpec{}
	}
	return NewFilterSpec(strings.Split(param, ",")...)
}

// IsEmpty reports whether the spec selects nothing.
func (f FilterSpec) IsEmpty() bool {
	return !f.noCourse && len(f.courses) == 0
}

// IncludesNoCourse reports whether the no-course marker is selected.
func (f FilterSpec) IncludesNoCourse() bool {
	return f.noCourse
}

// Courses returns the selected real course codes, sorted.
func (f FilterSpec) Courses() []string {
	out := make([]string, 0, len(f.courses))
	for c := range f.courses {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of selected tokens, counting the marker.
func (f FilterSpec) Len() int {
	n := len(f.courses)
	if f.noCourse {
		n++
	}
	return n
}

// ApplyFilter returns the records selected by spec, keeping their order.
//
//   - empty spec: every record
//   - marker only: records with num_courses == 0
//   - marker and courses: num_courses == 0 OR any course matches
//   - courses only: any course matches
//
// The input slice is never modified.
func ApplyFilter(records []UserRecord, spec FilterSpec) []UserRecord {
	if spec.IsEmpty() {
		return records
	}

	match := spec.predicate()
	out := make([]UserRecord, 0)
	for _, rec := range records {
		if match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// predicate turns the spec into a row test. Only called on non-empty specs.
func (f FilterSpec) predicate() func(UserRecord) bool {
	switch {
	case f.noCourse && len(f.courses) == 0:
		return hasNoCourses
	case f.noCourse:
		return func(r UserRecord) bool {
			return hasNoCourses(r) || hasAnyCourse(r.tokens, f.courses)
		}
	default:
		return func(r UserRecord) bool {
			return hasAnyCourse(r.tokens, f.courses)
		}
	}
}

// hasNoCourses trusts num_courses, not the parsed course codes.
func hasNoCourses(r UserRecord) bool {
	return r.NumCourses == 0
}

// hasAnyCourse reports whether any of the row's tokens is in targets.
func hasAnyCourse(tokens []string, targets map[string]struct{}) bool {
	for _, tok := range tokens {
		if _, ok := targets[tok]; ok {
			return true
		}
	}
	return false
}

// splitCourseCodes splits a course_codes cell on ", " and trims each token.
// A blank cell yields no tokens.
func splitCourseCodes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, courseDelimiter)
	tokens := make([]string, len(parts))
	for i, p := range parts {
		tokens[i] = strings.TrimSpace(p)
	}
	return tokens
}
