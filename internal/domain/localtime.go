package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LocalTimeLayout is the wire form of a floating wall-clock time, as produced
// by an HTML datetime-local input.
const LocalTimeLayout = "2006-01-02T15:04"

// LocalTime is a date and time of day with no timezone attached. A ride that
// starts at 06:00 starts at 06:00 wherever the rider is.
//
// The civil fields are held in a time.Time pinned to UTC so that arithmetic and
// formatting never apply a zone offset.
type LocalTime struct {
	t time.Time
}

// NewLocalTime builds a LocalTime from civil fields.
func NewLocalTime(year int, month time.Month, day, hour, min, sec int) LocalTime {
	return LocalTime{t: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// ParseLocalTime accepts "2006-01-02T15:04" and "2006-01-02T15:04:05".
func ParseLocalTime(s string) (LocalTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{LocalTimeLayout, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return LocalTime{t: t}, nil
		}
	}
	return LocalTime{}, fmt.Errorf("%w: invalid local date-time %q", ErrValidation, s)
}

// Civil returns the wall-clock fields as a time.Time in UTC. The location is
// meaningless; only the fields are.
func (l LocalTime) Civil() time.Time { return l.t }

// IsZero reports whether l was never set.
func (l LocalTime) IsZero() bool { return l.t.IsZero() }

// Before reports whether l is earlier than other on the wall clock.
func (l LocalTime) Before(other LocalTime) bool { return l.t.Before(other.t) }

// String formats l in LocalTimeLayout, with seconds only when non-zero.
func (l LocalTime) String() string {
	if l.t.Second() != 0 {
		return l.t.Format("2006-01-02T15:04:05")
	}
	return l.t.Format(LocalTimeLayout)
}

func (l LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *LocalTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseOptionalLocalTime returns nil for an empty string. The stored form of
// "not scheduled" is an empty string.
func ParseOptionalLocalTime(s string) (*LocalTime, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	lt, err := ParseLocalTime(s)
	if err != nil {
		return nil, err
	}
	return &lt, nil
}

// FormatOptionalLocalTime is the inverse of ParseOptionalLocalTime.
func FormatOptionalLocalTime(l *LocalTime) string {
	if l == nil {
		return ""
	}
	return l.String()
}
