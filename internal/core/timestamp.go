package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Timestamp is a transaction instant. Valid is false when the source value
// could not be read as a date.
type Timestamp struct {
	time.Time
	Valid bool
}

// maxEpochMillis bounds numeric timestamps to 100,000,000 days either side of
// the Unix epoch.
const maxEpochMillis = 8.64e15

// Layouts without a zone offset are read as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NewTimestamp returns a valid timestamp for t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC(), Valid: true}
}

// ParseTimestamp reads an RFC 3339 string or one of the zoneless layouts.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(t)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NewTimestamp(t)
		}
	}
	return Timestamp{}
}

// UTCYear returns the calendar year in UTC. ok is false for invalid timestamps.
func (t Timestamp) UTCYear() (year int, ok bool) {
	if !t.Valid {
		return 0, false
	}
	return t.Time.UTC().Year(), true
}

// UnmarshalJSON accepts date strings and Unix milliseconds within
// ±maxEpochMillis. Anything else yields an invalid timestamp rather than an
// error.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = Timestamp{}
	if len(data) == 0 {
		return nil
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*t = ParseTimestamp(s)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		var ms float64
		if err := json.Unmarshal(data, &ms); err == nil && math.Abs(ms) <= maxEpochMillis {
			*t = NewTimestamp(time.UnixMilli(int64(ms)))
		}
	}
	return nil
}
