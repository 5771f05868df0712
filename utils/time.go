package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// FormatUTC renders t as RFC3339 in UTC, the layout used by every API timestamp
func FormatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatUTCPtr is FormatUTC for optional timestamps; nil stays nil
func FormatUTCPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatUTC(*t)
	return &s
}
