package imaging

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	maxSlugLen   = 30
	nameAttempts = 10
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and collapses every run of other characters to "-".
func Slug(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		return "project"
	}
	return s
}

// RandomHex is swapped in tests to force collisions.
var RandomHex = func(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Name derives "<slug>-<8 hex>.webp" avoiding existing. After a bounded
// number of collisions it returns a 16 hex suffix without checking again,
// so it always terminates.
func Name(projectName string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		taken[e] = struct{}{}
	}
	slug := Slug(projectName)
	for i := 0; i < nameAttempts; i++ {
		candidate := slug + "-" + RandomHex(4) + Extension
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
	return slug + "-" + RandomHex(8) + Extension
}
