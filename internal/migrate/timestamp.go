package migrate

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Epoch is stored for timestamps that are missing or cannot be read. It sorts
// before every real timestamp.
const Epoch = "1970-01-01T00:00:00Z"

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeTimestamp renders v as an RFC 3339 UTC string. Strings without a zone
// are read as UTC, numbers as unix seconds. Anything else becomes Epoch.
func NormalizeTimestamp(v any) string {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return format(t)
			}
		}
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return fromUnix(f)
		}
	case float64:
		return fromUnix(x)
	}
	return Epoch
}

func fromUnix(f float64) string {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) || f > 253402300799 {
		return Epoch
	}
	sec, frac := math.Modf(f)
	return format(time.Unix(int64(sec), int64(frac*1e9)))
}

func format(t time.Time) string {
	t = t.UTC()
	if t.Year() < 1970 || t.Year() > 9999 {
		return Epoch
	}
	return t.Format(time.RFC3339Nano)
}
