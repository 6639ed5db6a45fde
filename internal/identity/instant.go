package identity

import (
	"fmt"
	"strings"
	"time"
)

// Layouts carrying an explicit offset.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// Layouts without an offset. time.Parse yields UTC for these, which is the
// single fallback rule: a timestamp without an offset already denotes UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ToCanonicalInstant parses a provider timestamp and returns it in UTC.
func ToCanonicalInstant(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("identity: empty timestamp: %w", ErrUnparsableTimestamp)
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("identity: parse %q: %w", raw, ErrUnparsableTimestamp)
}

// Canonical normalizes an already parsed instant to UTC.
func Canonical(t time.Time) time.Time {
	return t.UTC()
}

// FormatKickoff renders t the way it enters the event hash:
// 2006-01-02T15:04:05+00:00, with a six-digit fraction only when the
// microsecond component is nonzero. Precision below a microsecond is
// dropped. This string is part of every stored UID; changing it orphans all
// historical rows.
func FormatKickoff(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05") + "+00:00"
	}
	return t.Format("2006-01-02T15:04:05.000000") + "+00:00"
}
