// Package ratelimit throttles requests per client IP with named buckets.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule allows Count requests per Period.
type Rule struct {
	Count  int
	Period time.Duration
}

func (r Rule) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Period)
}

// ParseRule reads "<count>/<unit>" where unit is second, minute or hour
// (singular, plural, or abbreviated).
func ParseRule(s string) (Rule, error) {
	count, unit, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, fmt.Errorf("rate limit %q: want <count>/<unit>", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return Rule{}, fmt.Errorf("rate limit %q: count must be a positive integer", s)
	}
	var period time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "s", "sec", "second", "seconds":
		period = time.Second
	case "m", "min", "minute", "minutes":
		period = time.Minute
	case "h", "hr", "hour", "hours":
		period = time.Hour
	default:
		return Rule{}, fmt.Errorf("rate limit %q: unknown unit %q", s, unit)
	}
	return Rule{Count: n, Period: period}, nil
}
