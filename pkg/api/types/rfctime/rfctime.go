package rfctime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Format string for date-time in RFC3339, disallowing Z as time-offset.
//
// Use it to stringify time.Time forcing timezone offset not to use "Z".
const RFC3339DateTimeFormat string = "2006-01-02T15:04:05.999999-07:00"

// formats the server may send. Timestamps without offset are read as UTC.
var (
	withOffset = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	withoutOffset = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	}
)

// ISO8601 date-time, as the API serializes `created_at` and `job_run_start_time`.
type RFC3339 time.Time

func (t RFC3339) Time() time.Time {
	return time.Time(t)
}

func (t RFC3339) Equal(other RFC3339) bool {
	return t.Time().Equal(other.Time())
}

// get string expression, formatted by RFC3339DateTimeFormat.
func (t RFC3339) String() string {
	return time.Time(t).Format(RFC3339DateTimeFormat)
}

// Parse ISO8601 date-time loosely.
//
// "Z" and numeric offsets are accepted. When offset is missing, it is UTC.
func Parse(s string) (RFC3339, error) {
	for _, format := range withOffset {
		if t, err := time.Parse(format, s); err == nil {
			return RFC3339(t), nil
		}
	}
	for _, format := range withoutOffset {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return RFC3339(t), nil
		}
	}
	return RFC3339{}, fmt.Errorf("failed to parse as date-time: %s", s)
}

// implement encoding/json.Marshaller
func (t RFC3339) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, t)), nil
}

// implement encoding/json.Unmarshaller
func (t *RFC3339) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ret, err := Parse(s)
	if err != nil {
		return err
	}

	*t = ret
	return nil
}
