package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// DefaultExportEntity names the dataset in backup filenames.
const DefaultExportEntity = "usuarios_ufv"

// ExportContentType is the media type of serialized backups.
const ExportContentType = "text/csv; charset=utf-8"

// exportTimestampLayout renders YYYYMMDD_HHMMSS.
const exportTimestampLayout = "20060102_150405"

// ExportFilename builds backup_<entity>_<YYYYMMDD_HHMMSS>.csv.
func ExportFilename(entity string, at time.Time) string {
	if entity == "" {
		entity = DefaultExportEntity
	}
	return fmt.Sprintf("backup_%s_%s.csv", entity, at.Format(exportTimestampLayout))
}

// WriteCSV serializes header and the raw cells of records. Rows keep their
// given order; no display formatting is applied and no column is added.
func WriteCSV(header []string, records []UserRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec.Raw); err != nil {
			return nil, fmt.Errorf("write user %d: %w", rec.UserID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
