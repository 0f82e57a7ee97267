// internal/validate/validate.go
//
// Input rules for tenant icons, custom domains, and subdomain names.
//
// Context
// -------
// Every admin form funnels through these helpers before the record store or
// the hosting provider is touched.  The same rules are registered as
// go-playground/validator tags (`emoji_icon`, `domain_name`) so callers can
// declare them on input structs instead of calling them one by one.
//
// Notes
// -----
// • Icon length is counted in UTF-16 code units, so a string of six
//   astral-plane emoji counts as twelve and is rejected.
// • Oxford commas, two spaces after periods.
package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
)

// MaxIconLen is the longest icon accepted, in UTF-16 code units.
const MaxIconLen = 10

var (
	domainRe    = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?\.[a-zA-Z]{2,}$`)
	subdomainRe = regexp.MustCompile(`[^a-z0-9-]`)
)

//
// Icons
//

// IconChecker validates tenant icons.  The zero value requires at least one
// emoji rune.  LengthOnly drops the emoji requirement and accepts any string
// of 1–10 code units.
type IconChecker struct {
	LengthOnly bool
}

// Valid reports whether s is an acceptable icon.
func (c IconChecker) Valid(s string) bool {
	n := iconLen(s)
	if n < 1 || n > MaxIconLen {
		return false
	}
	if c.LengthOnly {
		return true
	}
	return ContainsEmoji(s)
}

// IsValidIcon applies the default (emoji-required) icon rule.
func IsValidIcon(s string) bool { return IconChecker{}.Valid(s) }

// ContainsEmoji reports whether s holds at least one emoji rune.  ASCII
// keycap bases (digits, '#', '*') only count when followed by U+20E3.
func ContainsEmoji(s string) bool {
	for _, r := range s {
		if unicode.Is(emojiTable, r) {
			return true
		}
	}
	return false
}

func iconLen(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// emojiTable approximates the Unicode Emoji property without the ASCII
// keycap bases.  U+20E3 is included so keycap sequences qualify.
var emojiTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00a9, Hi: 0x00a9, Stride: 1},
		{Lo: 0x00ae, Hi: 0x00ae, Stride: 1},
		{Lo: 0x203c, Hi: 0x203c, Stride: 1},
		{Lo: 0x2049, Hi: 0x2049, Stride: 1},
		{Lo: 0x20e3, Hi: 0x20e3, Stride: 1},
		{Lo: 0x2122, Hi: 0x2122, Stride: 1},
		{Lo: 0x2139, Hi: 0x2139, Stride: 1},
		{Lo: 0x2194, Hi: 0x2199, Stride: 1},
		{Lo: 0x21a9, Hi: 0x21aa, Stride: 1},
		{Lo: 0x231a, Hi: 0x231b, Stride: 1},
		{Lo: 0x2328, Hi: 0x2328, Stride: 1},
		{Lo: 0x23cf, Hi: 0x23cf, Stride: 1},
		{Lo: 0x23e9, Hi: 0x23f3, Stride: 1},
		{Lo: 0x23f8, Hi: 0x23fa, Stride: 1},
		{Lo: 0x24c2, Hi: 0x24c2, Stride: 1},
		{Lo: 0x25aa, Hi: 0x25ab, Stride: 1},
		{Lo: 0x25b6, Hi: 0x25b6, Stride: 1},
		{Lo: 0x25c0, Hi: 0x25c0, Stride: 1},
		{Lo: 0x25fb, Hi: 0x25fe, Stride: 1},
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1},
		{Lo: 0x2934, Hi: 0x2935, Stride: 1},
		{Lo: 0x2b05, Hi: 0x2b07, Stride: 1},
		{Lo: 0x2b1b, Hi: 0x2b1c, Stride: 1},
		{Lo: 0x2b50, Hi: 0x2b50, Stride: 1},
		{Lo: 0x2b55, Hi: 0x2b55, Stride: 1},
		{Lo: 0x3030, Hi: 0x3030, Stride: 1},
		{Lo: 0x303d, Hi: 0x303d, Stride: 1},
		{Lo: 0x3297, Hi: 0x3297, Stride: 1},
		{Lo: 0x3299, Hi: 0x3299, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f000, Hi: 0x1faff, Stride: 1},
	},
}

//
// Domains and subdomains
//

// IsValidDomain reports whether s is a single-label name under a TLD, e.g.
// "myapp.com".  Deeper hosts such as "www.myapp.com" are rejected.
func IsValidDomain(s string) bool {
	return domainRe.MatchString(s)
}

// NormalizeDomain lowercases and trims a domain before it is used as a key.
func NormalizeDomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SanitizeSubdomain lowercases s and drops every rune outside [a-z0-9-].
func SanitizeSubdomain(s string) string {
	return subdomainRe.ReplaceAllString(strings.ToLower(s), "")
}

//
// validator integration
//

// New returns a validator with the `emoji_icon` and `domain_name` tags
// registered.  icons decides how strict `emoji_icon` is.
func New(icons IconChecker) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("emoji_icon", func(fl validator.FieldLevel) bool {
		return icons.Valid(fl.Field().String())
	})
	_ = v.RegisterValidation("domain_name", func(fl validator.FieldLevel) bool {
		return IsValidDomain(fl.Field().String())
	})
	return v
}
