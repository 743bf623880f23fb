package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Source produces the raw table the dataset is built from.
// Load is called once at startup and never concurrently.
type Source interface {
	Load(ctx context.Context) (*Table, error)
	Name() string
}

// ctxCheckInterval is how many rows are parsed between cancellation checks.
const ctxCheckInterval = 1024

// CSVFileSource reads a comma-delimited file with a header row.
type CSVFileSource struct {
	Path string
}

// Name identifies the source in logs and errors.
func (s CSVFileSource) Name() string {
	return "csv:" + s.Path
}

// Load opens and parses the file.
func (s CSVFileSource) Load(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return ReadCSV(ctx, f)
}

// ReadCSV parses r into a Table. Every row must have as many fields as the
// header; the BOM and invalid UTF-8 bytes are cleaned up first.
func ReadCSV(ctx context.Context, r io.Reader) (*Table, error) {
	clean, counter := WrapSource(r)
	reader := csv.NewReader(clean)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, csvError(err)
	}

	table := &Table{Header: header}
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		table.Rows = append(table.Rows, row)
	}

	table.Bytes = counter.BytesRead()
	return table, nil
}

// csvError turns parser errors into row errors so they map to LOAD002.
func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &RowError{Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("read csv: %w", err)
}
