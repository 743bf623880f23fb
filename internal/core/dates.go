package core

import (
	"strings"
	"time"
)

// DisplayDateLayout is the DD/MM/YYYY HH:MM rendering used for list responses.
const DisplayDateLayout = "02/01/2006 15:04"

// timestampLayouts are tried in order. Fractional seconds are accepted by
// time.Parse on any layout that has a seconds field.
//
// Slash dates are read month first. The day-first layouts only match what
// month-first rejects, such as 15/09/2020.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// FormatDate renders a raw timestamp for display.
//
// Blank input yields NeverLabel. A value that parses is rendered with
// DisplayDateLayout in its own offset. Anything else is returned unchanged;
// FormatDate never fails.
func FormatDate(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return NeverLabel
	}
	t, ok := parseTimestamp(raw)
	if !ok {
		return raw
	}
	return t.Format(DisplayDateLayout)
}

// parseTimestamp tries every known layout against the trimmed value.
func parseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
