package datetime

import (
	"time"
)

type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

// fallbackFormats covers the date shapes third-party calendar exports have
// been seen to use when they stray from the RFC 5545 forms.
var fallbackFormats = []string{
	time.RFC3339,     // "2006-01-02T15:04:05Z07:00"
	time.RFC3339Nano, // "2006-01-02T15:04:05.999999999Z07:00"
	time.RFC1123Z,    // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,     // "Mon, 02 Jan 2006 15:04:05 MST"
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"20060102T150405Z0700",
	"20060102T1504",
	"2006-01-02",
	"2006/01/02",
}

// ParseFallback tries every known format and reports whether any matched.
// Zone-less formats are interpreted as UTC.
func (f *Formatter) ParseFallback(value string) (time.Time, bool) {
	for _, format := range fallbackFormats {
		if parsed, err := time.ParseInLocation(format, value, time.UTC); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// StartOfDayUTC returns UTC midnight of t's UTC calendar day.
func (f *Formatter) StartOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDayUTC returns 23:59:59.999 UTC of t's UTC calendar day.
func (f *Formatter) EndOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 999000000, time.UTC)
}
