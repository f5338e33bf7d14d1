package sanitizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds display names embedded in notification messages.
const MaxNameLength = 80

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		case unicode.IsControl(r) || r == utf8.RuneError:
			// dropped
		default:
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}

// NormalizeName collapses whitespace and truncates on a rune boundary.
// An empty result falls back to fallback.
func NormalizeName(name, fallback string) string {
	name = TrimAndNormalize(name)
	if name == "" {
		return fallback
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	return name
}

// NormalizeSlotLabel canonicalizes a time-slot label so "9:00 am" and
// " 9:00  AM" both match the configured "9:00 AM".
func NormalizeSlotLabel(label string) string {
	return strings.ToUpper(TrimAndNormalize(label))
}

// NormalizeIdentifier trims surrounding whitespace from opaque ids.
func NormalizeIdentifier(id string) string {
	return strings.TrimSpace(id)
}
