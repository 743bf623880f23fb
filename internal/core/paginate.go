package core

// DefaultPerPage is the page size used when a query does not specify one.
const DefaultPerPage = 50

// Validate rejects page specs outside the valid domain.
func (p PageSpec) Validate() error {
	if p.Page < 1 {
		return ErrInvalidPage
	}
	if p.PerPage < 1 {
		return ErrInvalidPerPage
	}
	return nil
}

// Paginate returns the requested page of rows together with its metadata.
//
// Pages past the end are empty, not an error. The returned PageInfo echoes
// the requested page and size; it is not derived from the slice.
func Paginate[T any](rows []T, spec PageSpec) ([]T, PageInfo, error) {
	if err := spec.Validate(); err != nil {
		return nil, PageInfo{}, err
	}

	total := len(rows)
	totalPages := total / spec.PerPage
	if total%spec.PerPage != 0 {
		totalPages++
	}
	info := PageInfo{
		Page:       spec.Page,
		PerPage:    spec.PerPage,
		Total:      total,
		TotalPages: totalPages,
	}

	// Bounds are checked before multiplying so huge inputs cannot overflow.
	if spec.Page-1 >= totalPages {
		return []T{}, info, nil
	}

	start := (spec.Page - 1) * spec.PerPage
	end := total
	if spec.PerPage < total-start {
		end = start + spec.PerPage
	}
	return rows[start:end:end], info, nil
}
