package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidRuleKind is returned when a sender rule matcher is neither a
	// full address nor an @domain suffix, or its weight is not positive
	ErrInvalidRuleKind = errors.New("invalid sender rule")
	// ErrInvalidTimestamp is returned when a timestamp cannot be parsed or
	// compared against the scoring reference time
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTimestamp parses provider timestamps. Values without a zone are taken
// to be UTC. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}
