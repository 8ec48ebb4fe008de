package model

import (
	"strings"
	"time"
)

// ParseTime parses a stored or posted timestamp, accepting both the
// second-precision storage layout and RFC 3339. The boolean reports
// whether the value was parsable.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
