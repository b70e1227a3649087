package probe

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Unix values above this are interpreted as milliseconds, below as
// seconds.
const epochMillisThreshold = 10_000_000_000

// NormalizeTimestamp coerces a provider timestamp into a canonical ISO
// 8601 UTC string. Accepted inputs: RFC 3339 strings (timezone-less
// values assume UTC), bare dates, unix seconds or milliseconds as a
// number or numeric string, and time.Time. Reports false when the
// value is unparseable.
func NormalizeTimestamp(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if t.IsZero() {
			return "", false
		}
		return toISO(t), true
	case string:
		return normalizeString(t)
	case float64:
		return epochToISO(t)
	case int64:
		return epochToISO(float64(t))
	case int:
		return epochToISO(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return "", false
		}
		return epochToISO(f)
	default:
		return "", false
	}
}

func normalizeString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return toISO(t), true
	}
	if isMissingTimezone(s) {
		if t, err := time.Parse(time.RFC3339, s+"Z"); err == nil {
			return toISO(t), true
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return toISO(t), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToISO(f)
	}
	return "", false
}

func epochToISO(v float64) (string, bool) {
	if v <= 0 {
		return "", false
	}
	return toISO(time.UnixMilli(EpochToMillis(v))), true
}

// EpochToMillis interprets a unix timestamp of unknown precision:
// values above the threshold are already milliseconds, smaller values
// are seconds.
func EpochToMillis(v float64) int64 {
	if v > epochMillisThreshold {
		return int64(v)
	}
	return int64(v * 1000)
}

func toISO(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
