package domain

import (
	"fmt"
	"strings"
	"time"
)

// AlignedTime is a timestamp normalized to UTC, labeled with how it got
// there. NaiveAssumedUTC is true when the source value carried no zone and
// the documented "naive means UTC" convention was applied; the run report
// surfaces the count so the assumption stays visible instead of inherited.
type AlignedTime struct {
	Time            time.Time
	NaiveAssumedUTC bool
}

// IsZero reports whether the timestamp is unset.
func (a AlignedTime) IsZero() bool { return a.Time.IsZero() }

// awareLayouts carry an explicit offset and are converted to UTC.
var awareLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
}

// naiveLayouts carry no zone; values are assumed to already represent UTC.
var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a source timestamp string into an AlignedTime.
// Zone-aware values are converted to UTC; naive values are labeled as
// assumed-UTC without conversion.
func ParseTimestamp(s string) (AlignedTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AlignedTime{}, fmt.Errorf("parse timestamp: empty value")
	}
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return AlignedTime{Time: t.UTC()}, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return AlignedTime{Time: t, NaiveAssumedUTC: true}, nil
		}
	}
	return AlignedTime{}, fmt.Errorf("parse timestamp: unrecognized layout %q", s)
}

// AlignUTC converts an already-parsed timestamp to the reference zone.
// Aligning an aligned timestamp is a no-op.
func AlignUTC(t time.Time) time.Time { return t.UTC() }
