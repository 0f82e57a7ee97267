package validate

import "strings"

// maxSubdomainLen is the DNS label limit.
const maxSubdomainLen = 63

// SuggestSubdomain turns arbitrary text into a name SanitizeSubdomain would
// leave unchanged, e.g. "My Shop!" → "my-shop".  Runs of other characters
// collapse to one hyphen and edge hyphens are trimmed.  Returns "" when
// nothing usable remains.
func SuggestSubdomain(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastWasDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash {
				b.WriteByte('-')
				lastWasDash = true
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > maxSubdomainLen {
		out = strings.TrimRight(out[:maxSubdomainLen], "-")
	}
	return out
}
