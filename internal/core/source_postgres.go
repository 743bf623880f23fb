package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads the dataset from a table or view.
// It only ever issues a single SELECT; nothing is written back.
type PostgresSource struct {
	Pool *pgxpool.Pool

	// Table may be schema qualified, e.g. "canvas.usuarios_inactivos".
	Table string

	// OrderBy is an optional column that fixes the dataset order.
	OrderBy string
}

// Name identifies the source in logs and errors.
func (s PostgresSource) Name() string {
	return "postgres:" + s.Table
}

// Load selects every row and renders every cell as text, so the rest of the
// pipeline treats the table exactly like a CSV file.
func (s PostgresSource) Load(ctx context.Context) (*Table, error) {
	if s.Pool == nil {
		return nil, fmt.Errorf("postgres source: nil pool")
	}
	if strings.TrimSpace(s.Table) == "" {
		return nil, fmt.Errorf("postgres source: table not set")
	}

	query := "SELECT * FROM " + quoteQualified(s.Table)
	if s.OrderBy != "" {
		query += " ORDER BY " + quoteIdentifier(s.OrderBy)
	}

	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	table := &Table{Header: make([]string, len(fields))}
	for i, fd := range fields {
		table.Header[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatCell(v, fields[i].DataTypeOID)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	if len(table.Header) == 0 {
		return nil, ErrEmptySource
	}
	return table, nil
}

// formatCell renders a decoded column value as CSV-style text.
// NULL becomes the empty string.
func formatCell(v any, oid uint32) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if oid == pgtype.DateOID {
			return val.Format("2006-01-02")
		}
		if oid == pgtype.TimestampOID {
			return val.Format("2006-01-02 15:04:05")
		}
		return val.Format(time.RFC3339)
	case pgtype.Numeric:
		if !val.Valid {
			return ""
		}
		if val.Exp >= 0 {
			if i, err := val.Int64Value(); err == nil && i.Valid {
				return strconv.FormatInt(i.Int64, 10)
			}
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		return strconv.FormatFloat(f.Float64, 'f', -1, 64)
	case [16]byte:
		return uuid.UUID(val).String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// quoteIdentifier double-quotes a single SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteQualified quotes each dot-separated part of a table name.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteIdentifier(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}
