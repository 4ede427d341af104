package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/integration-nodos/domain"
)

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the textual date forms sent by the backend. Dates without
// a zone are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return time.UnixMilli(int64(math.Trunc(f))), true
	}

	return time.Time{}, false
}

// ToEpochMillis returns the epoch milliseconds of ts, or domain.InvalidEpoch.
func ToEpochMillis(ts domain.Timestamp, loc *time.Location) int64 {
	if ts.IsEpoch() {
		if ms, ok := ts.Millis(); ok {
			return ms
		}
		return domain.InvalidEpoch
	}

	t, ok := ParseTimestamp(ts.Text(), loc)
	if !ok {
		return domain.InvalidEpoch
	}

	return t.UnixMilli()
}

// NormalizeTimestamps rewrites, in place, every timestamp that is not epoch
// milliseconds yet. Already normalized readings are left untouched.
func NormalizeTimestamps(readings []domain.Reading, loc *time.Location) {
	for i := range readings {
		if readings[i].Timestamp.IsEpoch() {
			continue
		}
		readings[i].Timestamp = domain.EpochMillis(ToEpochMillis(readings[i].Timestamp, loc))
	}
}

func timeOf(ts domain.Timestamp, loc *time.Location) (time.Time, bool) {
	ms := ToEpochMillis(ts, loc)
	if ms == domain.InvalidEpoch {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
