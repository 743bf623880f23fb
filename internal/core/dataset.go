package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Store holds the immutable dataset and its precomputed course catalog.
// It is built once before serving and only read afterwards, so it is safe
// for concurrent use without locking.
type Store struct {
	header  []string
	records []UserRecord
	courses []string

	// inconsistent counts records whose num_courses is 0 while
	// course_codes is not empty.
	inconsistent int

	bytes int64
}

// Load reads the table from src and builds a Store from it.
// Any error is a load failure; callers must not serve without a Store.
func Load(ctx context.Context, src Source) (*Store, error) {
	table, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}
	store, err := NewStore(table)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}
	return store, nil
}

// NewStore validates the table and builds the dataset and course catalog.
func NewStore(table *Table) (*Store, error) {
	if table == nil || len(table.Header) == 0 {
		return nil, ErrEmptySource
	}

	idx := buildHeaderIndex(table.Header)
	cols := make(map[string]int, len(RequiredColumns))
	for _, name := range RequiredColumns {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		cols[name] = i
	}

	header := append([]string(nil), table.Header...)
	records := make([]UserRecord, 0, len(table.Rows))
	distinct := make(map[string]struct{})
	inconsistent := 0

	for n, row := range table.Rows {
		line := n + 2
		if len(row) != len(header) {
			return nil, &RowError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, got %d", len(header), len(row)),
			}
		}

		rec, err := buildRecord(row, cols, line)
		if err != nil {
			return nil, err
		}

		for _, tok := range rec.tokens {
			if tok != "" && tok != NoCourseMarker {
				distinct[tok] = struct{}{}
			}
		}
		if rec.NumCourses == 0 && len(rec.tokens) > 0 {
			inconsistent++
		}
		records = append(records, rec)
	}

	courses := make([]string, 0, len(distinct)+1)
	for tok := range distinct {
		courses = append(courses, tok)
	}
	sort.Strings(courses)
	courses = append([]string{NoCourseMarker}, courses...)

	return &Store{
		header:       header,
		records:      records,
		courses:      courses,
		inconsistent: inconsistent,
		bytes:        table.Bytes,
	}, nil
}

// buildRecord parses the typed columns of a row. The row slice is copied so
// the store never aliases the caller's table.
func buildRecord(row []string, cols map[string]int, line int) (UserRecord, error) {
	rawID := strings.TrimSpace(row[cols[ColUserID]])
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return UserRecord{}, &RowError{Line: line, Column: ColUserID, Value: rawID, Err: err}
	}

	rawNum := strings.TrimSpace(row[cols[ColNumCourses]])
	num, err := strconv.Atoi(rawNum)
	if err != nil {
		return UserRecord{}, &RowError{Line: line, Column: ColNumCourses, Value: rawNum, Err: err}
	}

	codes := row[cols[ColCourseCodes]]
	return UserRecord{
		UserID:      id,
		CourseCodes: codes,
		NumCourses:  num,
		CreatedAt:   row[cols[ColCreatedAt]],
		LastLogin:   row[cols[ColLastLogin]],
		Raw:         append([]string(nil), row...),
		tokens:      splitCourseCodes(codes),
	}, nil
}

// buildHeaderIndex maps lowercase, trimmed header names to their position.
// The first occurrence of a duplicated name wins.
func buildHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := normalizeColumn(h)
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Header returns the source column names in their original order.
func (s *Store) Header() []string {
	return s.header
}

// Records returns the dataset in source order. Callers must not modify it.
func (s *Store) Records() []UserRecord {
	return s.records
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Courses returns the course catalog: the no-course marker first, then every
// distinct course code sorted ascending.
func (s *Store) Courses() []string {
	return s.courses
}

// InconsistentCount returns how many records claim zero courses while still
// listing course codes. Those records are treated as having no courses.
func (s *Store) InconsistentCount() int {
	return s.inconsistent
}

// SourceBytes returns the raw size of the loaded source, 0 if unknown.
func (s *Store) SourceBytes() int64 {
	return s.bytes
}

// FindByIDs returns, in dataset order, every record whose id is in ids.
// Ids that are not present are ignored.
func (s *Store) FindByIDs(ids []int64) []UserRecord {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	found := make([]UserRecord, 0, len(want))
	for _, rec := range s.records {
		if _, ok := want[rec.UserID]; ok {
			found = append(found, rec)
		}
	}
	return found
}
