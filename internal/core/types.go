package core

import "encoding/json"

// NoCourseMarker is the synthetic catalog entry for users enrolled in zero courses.
const NoCourseMarker = "Sin curso"

// NeverLabel is shown instead of a date when the raw value is empty.
const NeverLabel = "Nunca"

// Column names the dataset must provide (matched case-insensitively).
const (
	ColUserID      = "user_id"
	ColCourseCodes = "course_codes"
	ColNumCourses  = "num_courses"
	ColCreatedAt   = "created_at"
	ColLastLogin   = "last_login"
)

// RequiredColumns lists the columns every source must carry.
var RequiredColumns = []string{ColUserID, ColCourseCodes, ColNumCourses, ColCreatedAt, ColLastLogin}

// Table is the raw tabular output of a Source: a header row and string cells.
// An empty cell stands for a null value.
type Table struct {
	Header []string
	Rows   [][]string

	// Bytes is the size of the raw input, or 0 when the source has none.
	Bytes int64
}

// HeaderIndex maps column names (lowercase, trimmed) to their position in a row.
type HeaderIndex map[string]int

// UserRecord is one row of the dataset.
//
// NumCourses is the authority for "has no courses"; CourseCodes is not
// re-parsed to decide that, even when the two disagree.
type UserRecord struct {
	UserID      int64
	CourseCodes string
	NumCourses  int
	CreatedAt   string
	LastLogin   string

	// Raw holds every column of the source row in header order, untouched.
	Raw []string

	tokens []string
}

// Tokens returns the parsed course codes of the record.
func (r UserRecord) Tokens() []string {
	return r.tokens
}

// PageSpec selects one page of a result.
type PageSpec struct {
	Page    int
	PerPage int
}

// PageInfo describes the page that was served.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// DisplayRecord is a UserRecord augmented with human-readable dates.
// Only list responses use it; exports never do.
type DisplayRecord struct {
	Record           UserRecord
	Header           []string
	CreatedAtDisplay string
	LastLoginDisplay string
}

// Keys added to every list row next to the source columns.
const (
	KeyCreatedAtDisplay = "created_at_display"
	KeyLastLoginDisplay = "last_login_display"
)

// MarshalJSON renders every source column plus the display fields.
// Required columns always use their canonical lowercase names, whatever
// the header spelling; other columns keep their raw header name.
// user_id and num_courses are numbers, empty cells are null and every
// other cell keeps its raw text.
//
// When two columns map to the same key the first one wins, as in the
// header index. The display keys are reserved: a source column with
// one of those names is left out of the row.
func (d DisplayRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Header)+2)
	out[KeyCreatedAtDisplay] = d.CreatedAtDisplay
	out[KeyLastLoginDisplay] = d.LastLoginDisplay

	for i, col := range d.Header {
		if i >= len(d.Record.Raw) {
			break
		}
		key := col
		if norm := normalizeColumn(col); isRequiredColumn(norm) {
			key = norm
		}
		if _, taken := out[key]; taken {
			continue
		}

		switch key {
		case ColUserID:
			out[key] = d.Record.UserID
		case ColNumCourses:
			out[key] = d.Record.NumCourses
		default:
			out[key] = cellValue(d.Record.Raw[i])
		}
	}
	return json.Marshal(out)
}

func isRequiredColumn(name string) bool {
	for _, col := range RequiredColumns {
		if col == name {
			return true
		}
	}
	return false
}

// cellValue converts a raw cell to its JSON form: null when empty,
// the verbatim string otherwise.
func cellValue(raw string) any {
	if raw == "" {
		return nil
	}
	return raw
}

// CoursesResult is the catalog listing.
type CoursesResult struct {
	Courses []string `json:"courses"`
	Total   int      `json:"total"`
}

// UsersResult is one page of filtered users.
type UsersResult struct {
	Users      []DisplayRecord `json:"users"`
	Pagination PageInfo        `json:"pagination"`
}

// Export is a serialized backup of selected users.
type Export struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}
