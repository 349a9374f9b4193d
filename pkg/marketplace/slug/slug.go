// Package slug derives URL-safe identifiers from display names.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FallbackPrefix is used when a name normalizes to nothing, e.g. a Hangul-only name.
const FallbackPrefix = "product"

var (
	disallowed = regexp.MustCompile(`[^\w\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
	hyphens    = regexp.MustCompile(`-+`)
)

// Normalize lower-cases s, strips everything except ASCII word characters,
// whitespace and hyphens, turns whitespace runs into hyphens, collapses
// repeated hyphens and trims hyphens from both ends. Non-Latin scripts are
// dropped, not transliterated.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Generate returns Normalize(name) with a base-36 millisecond timestamp suffix.
func Generate(name string, now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	base := Normalize(name)
	if base == "" {
		return FallbackPrefix + "-" + ts
	}
	return base + "-" + ts
}

// ExistsFunc reports whether a slug is already taken
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Unique probes base, base-1, base-2, ... until exists reports a free slug.
func Unique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	candidate := base
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
