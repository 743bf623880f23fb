// Package core holds the users catalog: the dataset loaded once at startup,
// the course filter, pagination, date display and CSV backups.
//
// This package has no knowledge of HTTP. Web handlers, the CLI and tests all
// drive it through [Service].
//
// # Loading
//
// A [Source] produces a raw [Table]; [NewStore] validates it and builds the
// immutable dataset and course catalog. Two sources exist:
//
//   - [CSVFileSource]: a header-first CSV file, BOM and bad UTF-8 tolerated
//   - [PostgresSource]: a single SELECT over a table or view
//
// A failed load is fatal. The server never starts without a [Store].
//
// # Course filter
//
// [ApplyFilter] keeps records whose course tokens intersect the selection.
// The [NoCourseMarker] token selects records with num_courses == 0 and is
// OR-ed with any real course tokens. An empty selection keeps everything.
//
//	spec := core.ParseFilterSpec("MATH101,Sin curso")
//	rows := core.ApplyFilter(store.Records(), spec)
//
// # Pagination
//
// [Paginate] is generic and validates its [PageSpec] before doing any
// arithmetic. Pages past the end are empty rather than errors.
//
// # Errors
//
// Technical errors are mapped to user messages with codes by [MapError]:
//
//   - QRY001-QRY002: bad page parameters
//   - EXP001-EXP002: empty selection, export limiter saturated
//   - REQ001-REQ003: request problems
//   - LOAD001-LOAD003: dataset load failures (startup only)
package core
