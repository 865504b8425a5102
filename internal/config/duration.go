package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration fields (telegram.poll_timeout, source.fetch_timeout) are plain
// strings in the file so the config stays valid YAML and JSON; parsing
// happens at use sites with the field path carried into the error.

// ParseDurationField parses a Go duration string. Empty means "not set"
// and parses to zero; negative durations are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def for an unset field. A malformed
// value stays an error rather than being papered over with the default.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
