package imaging

import (
	"regexp"
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"My Cool Project!":        "my-cool-project",
		"  --Go__Rocks--  ":       "go-rocks",
		"日本語":                     "project",
		"":                        "project",
		strings.Repeat("ab ", 20): "ab-ab-ab-ab-ab-ab-ab-ab-ab-ab",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

var namePattern = regexp.MustCompile(`^my-site-[0-9a-f]{8}\.webp$`)

func TestNameFormatAndUniqueness(t *testing.T) {
	got := Name("My Site", nil)
	if !namePattern.MatchString(got) {
		t.Fatalf("unexpected name %q", got)
	}
}

func withRandom(t *testing.T, fn func(n int) string) {
	t.Helper()
	prev := RandomHex
	RandomHex = fn
	t.Cleanup(func() { RandomHex = prev })
}

func TestNameRetriesOnCollision(t *testing.T) {
	seq := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	i := 0
	withRandom(t, func(n int) string { s := seq[i]; i++; return s })
	got := Name("site", []string{"site-aaaaaaaa.webp"})
	if got != "site-bbbbbbbb.webp" {
		t.Fatalf("expected retry to pick new suffix, got %q", got)
	}
}

func TestNameTerminatesUnderPersistentCollision(t *testing.T) {
	calls := 0
	withRandom(t, func(n int) string {
		calls++
		return strings.Repeat("0", n*2)
	})
	got := Name("site", []string{"site-00000000.webp"})
	if got != "site-0000000000000000.webp" {
		t.Fatalf("expected long fallback suffix, got %q", got)
	}
	if calls != nameAttempts+1 {
		t.Fatalf("expected %d attempts, got %d", nameAttempts+1, calls)
	}
}

func TestNameAvoidsExistingSet(t *testing.T) {
	existing := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		existing = append(existing, Name("dup", existing))
	}
	seen := map[string]bool{}
	for _, n := range existing {
		if seen[n] {
			t.Fatalf("duplicate name generated: %s", n)
		}
		seen[n] = true
	}
}
