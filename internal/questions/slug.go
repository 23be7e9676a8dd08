package questions

import (
	"strings"
)

// Slugify normalizes a provider category name into a stable key:
// lowercase, "&" -> "and", every other non-alphanumeric run collapsed to a
// single "_", and leading/trailing "_" trimmed.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")

	var b strings.Builder
	prevUnderscore := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
