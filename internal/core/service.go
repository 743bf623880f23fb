package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Observer receives query and export outcomes. internal/metrics implements it.
type Observer interface {
	ObserveQuery(op string, rows int, elapsed time.Duration)
	ObserveExport(outcome string, rows int, bytes int)
}

// Export outcomes reported to the Observer.
const (
	ExportOK       = "ok"
	ExportEmpty    = "empty_selection"
	ExportRejected = "rejected"
	ExportFailed   = "error"
)

type noopObserver struct{}

func (noopObserver) ObserveQuery(string, int, time.Duration) {}
func (noopObserver) ObserveExport(string, int, int)          {}

// Service answers catalog, listing and export requests over a loaded Store.
// It holds no mutable dataset state and is safe for concurrent use.
type Service struct {
	store    *Store
	limiter  *ExportLimiter
	entity   string
	now      func() time.Time
	observer Observer
}

// Option configures a Service.
type Option func(*Service)

// WithExportLimiter bounds concurrent exports.
func WithExportLimiter(l *ExportLimiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithExportEntity sets the entity name used in backup filenames.
func WithExportEntity(entity string) Option {
	return func(s *Service) {
		if entity != "" {
			s.entity = entity
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewService creates a Service over store.
func NewService(store *Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("new service: nil store")
	}
	s := &Service{
		store:    store,
		limiter:  NewExportLimiter(DefaultMaxConcurrentExports, DefaultExportWait),
		entity:   DefaultExportEntity,
		now:      time.Now,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store returns the underlying dataset.
func (s *Service) Store() *Store {
	return s.store
}

// Limiter returns the export limiter, used for status and shutdown.
func (s *Service) Limiter() *ExportLimiter {
	return s.limiter
}

// ListCourses returns the course catalog.
func (s *Service) ListCourses() CoursesResult {
	courses := append([]string(nil), s.store.Courses()...)
	return CoursesResult{Courses: courses, Total: len(courses)}
}

// ListUsers filters the dataset, slices out one page and adds display dates.
// The page spec is validated before any filtering happens.
func (s *Service) ListUsers(ctx context.Context, filter FilterSpec, page PageSpec) (*UsersResult, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := s.now()
	matched := ApplyFilter(s.store.Records(), filter)
	rows, info, err := Paginate(matched, page)
	if err != nil {
		return nil, err
	}

	header := s.store.Header()
	users := make([]DisplayRecord, len(rows))
	for i, rec := range rows {
		users[i] = DisplayRecord{
			Record:           rec,
			Header:           header,
			CreatedAtDisplay: FormatDate(rec.CreatedAt),
			LastLoginDisplay: FormatDate(rec.LastLogin),
		}
	}

	s.observer.ObserveQuery("list_users", len(users), s.now().Sub(start))
	return &UsersResult{Users: users, Pagination: info}, nil
}

// ExportByIDs serializes the selected users to CSV. Unknown ids are skipped;
// an empty id list fails with ErrEmptySelection before anything else runs.
func (s *Service) ExportByIDs(ctx context.Context, ids []int64) (*Export, error) {
	if len(ids) == 0 {
		s.observer.ObserveExport(ExportEmpty, 0, 0)
		return nil, ErrEmptySelection
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.observer.ObserveExport(ExportRejected, 0, 0)
		return nil, err
	}
	defer s.limiter.Release()

	records := s.store.FindByIDs(ids)
	data, err := WriteCSV(s.store.Header(), records)
	if err != nil {
		s.observer.ObserveExport(ExportFailed, 0, 0)
		return nil, err
	}

	s.observer.ObserveExport(ExportOK, len(records), len(data))
	return &Export{
		ID:          uuid.New().String(),
		Filename:    ExportFilename(s.entity, s.now()),
		ContentType: ExportContentType,
		Data:        data,
		Rows:        len(records),
	}, nil
}
